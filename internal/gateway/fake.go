// Package gateway abstracts the outbound Discord operations the bot
// performs. This file provides an in-memory Gateway used by the service
// and sweep tests.
package gateway

import (
	"context"
	"sync"
)

// FakeMessage is a message held by the fake gateway, with enough metadata
// to assert on edits and deletions.
type FakeMessage struct {
	SentMessage
	Payload Message
	Deleted bool
}

// Fake is an in-memory Gateway. It records every send/edit/delete and can
// be primed to fail specific operations.
type Fake struct {
	mu     sync.Mutex
	nextID int64
	msgs   map[int64]*FakeMessage

	// SendErr, EditErr, DeleteErr, GetErr are returned by the
	// corresponding operations when non-nil.
	SendErr   error
	EditErr   error
	DeleteErr error
	GetErr    error
}

// NewFake returns an empty fake gateway.
func NewFake() *Fake {
	return &Fake{nextID: 1000, msgs: map[int64]*FakeMessage{}}
}

var _ Gateway = (*Fake)(nil)

// SendMessage stores the message under a fresh id.
func (f *Fake) SendMessage(_ context.Context, channelID int64, msg Message) (SentMessage, error) {
	if f.SendErr != nil {
		return SentMessage{}, f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sent := SentMessage{ID: f.nextID, ChannelID: channelID}
	f.msgs[f.nextID] = &FakeMessage{SentMessage: sent, Payload: msg}
	return sent, nil
}

// EditMessage replaces the stored payload, or reports not-found.
func (f *Fake) EditMessage(_ context.Context, channelID, messageID int64, msg Message) error {
	if f.EditErr != nil {
		return f.EditErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.Deleted {
		return ErrMessageNotFound
	}
	m.Payload = msg
	return nil
}

// DeleteMessage marks the stored message deleted, or reports not-found.
func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID int64) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.Deleted {
		return ErrMessageNotFound
	}
	m.Deleted = true
	return nil
}

// GetMessage returns the stored message identity, or reports not-found.
func (f *Fake) GetMessage(_ context.Context, channelID, messageID int64) (SentMessage, error) {
	if f.GetErr != nil {
		return SentMessage{}, f.GetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.Deleted {
		return SentMessage{}, ErrMessageNotFound
	}
	return m.SentMessage, nil
}

// Message returns the stored message with the given id, or nil.
func (f *Fake) Message(id int64) *FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[id]
}

// Messages returns all messages ever sent, including deleted ones.
func (f *Fake) Messages() []*FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeMessage, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m)
	}
	return out
}

// Seed stores a message under a fixed id, for priming tracked messages.
func (f *Fake) Seed(channelID, messageID int64, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[messageID] = &FakeMessage{
		SentMessage: SentMessage{ID: messageID, ChannelID: channelID},
		Payload:     msg,
	}
}
