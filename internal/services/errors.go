// Package services defines the business logic for requests, tasks, and
// deliveries. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages is performed at the interaction
// handler layer.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the referenced request does not
	// exist (by id or by message id).
	ErrRequestNotFound = errors.New("request not found")

	// ErrTaskNotFound indicates that none of the referenced task ids exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTasks is returned when a task spec expands to zero tasks.
	ErrNoTasks = errors.New("request needs at least one task")

	// ErrNoChannel is returned when repeating a request that has no stored
	// channel (an ephemeral request cannot be reposted).
	ErrNoChannel = errors.New("request has no channel to repeat into")

	// ErrEmptyTitle is returned when a request title is blank after
	// trimming.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrMalformedDelivery is returned when a delivery spec does not parse
	// as item:amount pairs.
	ErrMalformedDelivery = errors.New("delivery must be item:amount pairs separated by ';'")
)
