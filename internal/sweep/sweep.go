// Package sweep runs the bot's background loops: the expiration sweep,
// which archives open requests whose deadline has passed, and the schedule
// sweep, which posts recurring requests that have come due. Both run on a
// shared fixed interval and treat per-item failures as log-and-continue;
// the next tick retries naturally.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tbourn/go-request-bot/internal/gateway"
	"github.com/tbourn/go-request-bot/internal/metrics"
	"github.com/tbourn/go-request-bot/internal/repo"
	"github.com/tbourn/go-request-bot/internal/services"
)

// Sweeper drives the periodic background work.
type Sweeper struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gateway performs outbound message operations.
	Gateway gateway.Gateway
	// Lifecycle archives expired requests.
	Lifecycle *services.LifecycleService
	// Schedules posts due recurring requests; nil disables the schedule
	// sweep.
	Schedules *services.ScheduleService
	// Interval between sweep iterations.
	Interval time.Duration
	// Limiter paces outbound gateway traffic generated by sweeps, so a
	// large backlog of expired requests does not burst into the API.
	Limiter *rate.Limiter
	// Log receives per-iteration and per-item events.
	Log zerolog.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Run loops until the context is canceled. One iteration runs immediately
// on start so restarts don't delay overdue work by a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		s.sweepExpired(ctx)
		if s.Schedules != nil {
			s.sweepSchedules(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweepExpired archives every open request whose expiration has passed.
// Each request is handled independently: an error is logged and counted,
// and the sweep moves on.
func (s *Sweeper) sweepExpired(ctx context.Context) {
	expired, err := repo.ListExpiredRequests(ctx, s.DB, s.now())
	if err != nil {
		s.Log.Error().Err(err).Msg("expiration sweep: list expired requests")
		metrics.SweepErrors.WithLabelValues("expiration").Inc()
		return
	}
	for _, req := range expired {
		if err := s.wait(ctx); err != nil {
			return
		}
		var channel int64
		if req.DiscordChannelID != nil {
			channel = *req.DiscordChannelID
		}
		trig := services.SweepTrigger{Gateway: s.Gateway, Channel: channel}
		outcome, err := s.Lifecycle.MaybeArchive(ctx, req.ID, trig)
		if err != nil {
			s.Log.Error().Err(err).Str("request_id", req.ID).Msg("expiration sweep: archive failed")
			metrics.SweepErrors.WithLabelValues("expiration").Inc()
			continue
		}
		s.Log.Info().
			Str("request_id", req.ID).
			Stringer("outcome", outcome).
			Msg("expiration sweep: request archived")
	}
	metrics.SweepRuns.WithLabelValues("expiration").Inc()
}

// sweepSchedules posts requests for all due schedules.
func (s *Sweeper) sweepSchedules(ctx context.Context) {
	if err := s.wait(ctx); err != nil {
		return
	}
	if err := s.Schedules.PostDue(ctx); err != nil {
		s.Log.Error().Err(err).Msg("schedule sweep: posting due schedules")
		metrics.SweepErrors.WithLabelValues("schedule").Inc()
	}
	metrics.SweepRuns.WithLabelValues("schedule").Inc()
}

// wait blocks on the outbound rate limiter, if one is configured.
func (s *Sweeper) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	return s.Limiter.Wait(ctx)
}
