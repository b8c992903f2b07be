package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/tasklist-service/internal/events"
	"github.com/spec-kit/tasklist-service/internal/service"
)

// SessionSweeper periodically deletes refresh tokens past their expiry.
// Validation never depends on it; it only keeps the table small.
type SessionSweeper struct {
	sessions   *service.SessionStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration
}

// NewSessionSweeper builds a sweeper. dispatcher may be nil.
func NewSessionSweeper(sessions *service.SessionStore, dispatcher events.Dispatcher, logger *zap.Logger, interval time.Duration) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSweeper{sessions: sessions, dispatcher: dispatcher, logger: logger, interval: interval}
}

// SweepOnce purges expired rows and reports how many were removed.
func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.sessions.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSessionsSwept,
			Timestamp: time.Now().UTC(),
			Payload:   events.SessionsSweptPayload{Removed: removed},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return removed, nil
}

// Run sweeps on every tick until ctx is done. A non-positive interval disables it.
func (s *SessionSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}
