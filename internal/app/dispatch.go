package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/livevote/internal/domain"
)

const (
	// processTimeout is the hard deadline for one vote unit.
	processTimeout = 5 * time.Second

	maxConcurrentUnits = 64
)

// Result labels for the votes_processed_total metric.
const (
	resultApplied  = "applied"
	resultIgnored  = "ignored"
	resultRedacted = "redacted"
	resultTimeout  = "timeout"
	resultError    = "error"
)

// Dispatch processes one chat message as an independent concurrent unit with
// a hard deadline. Failures are logged and dropped; nothing propagates to
// the caller or to sibling units.
func (s *Service) Dispatch(msg domain.ChatMessage) {
	go func() {
		s.units <- struct{}{}
		defer func() { <-s.units }()

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		unitID := uuid.NewString()
		start := s.clock.Now()

		result, err := s.processMessage(ctx, msg)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			result = resultTimeout
		}

		if s.metrics != nil {
			s.metrics.VotesProcessed.WithLabelValues(result).Inc()
			s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
		}

		switch result {
		case resultTimeout:
			slog.Error("Vote unit timed out",
				"unit_id", unitID,
				"user_id", msg.AuthorID,
				"text", msg.Text,
				"timeout", processTimeout,
			)
		case resultError:
			slog.Error("Vote unit failed",
				"unit_id", unitID,
				"user_id", msg.AuthorID,
				"error", err,
			)
		case resultApplied:
			slog.Debug("Vote applied", "unit_id", unitID, "user_id", msg.AuthorID)
		}
	}()
}

func logIgnoredCode(code string) {
	slog.Debug("Not a valid country code", "code", code)
}
