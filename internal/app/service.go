// Package app is the application layer. It turns raw chat messages into
// votes, routes admin operations, and glues the engine, reports, and hub
// together.
package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livevote/internal/domain"
	"github.com/pscheid92/livevote/internal/metrics"
	"github.com/pscheid92/livevote/internal/report"
)

const (
	basePoints = 100

	// indefiniteBlockHorizon stands in for "forever" when a block has no
	// duration.
	indefiniteBlockHorizon = 5 * 365 * 24 * time.Hour
)

// VoteRegistrar applies one vote atomically and returns the events it fired.
type VoteRegistrar interface {
	RegisterVote(ctx context.Context, vote *domain.Vote) ([]domain.Event, error)
}

// Notifier pushes a report to all connected clients.
type Notifier interface {
	Notify(payload any)
}

// Service orchestrates vote ingestion and administration.
type Service struct {
	store    domain.Store
	resolver domain.CountryResolver
	engine   VoteRegistrar
	reports  *report.Service
	hub      Notifier
	clock    clockwork.Clock
	metrics  *metrics.VoteMetrics

	// semaphore bounding concurrent vote units
	units chan struct{}
}

func NewService(store domain.Store, resolver domain.CountryResolver, engine VoteRegistrar, reports *report.Service, hub Notifier, clock clockwork.Clock, m *metrics.VoteMetrics) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		engine:   engine,
		reports:  reports,
		hub:      hub,
		clock:    clock,
		metrics:  m,
		units:    make(chan struct{}, maxConcurrentUnits),
	}
}

// StatusReport returns the current full snapshot.
func (s *Service) StatusReport(ctx context.Context) (*report.StatusPayload, error) {
	return s.reports.StatusReport(ctx)
}

// BlockUser blocks the referenced user from counting votes. A nil duration
// blocks indefinitely (five-year horizon). Returns domain.ErrUserNotFound
// when the reference matches nobody.
func (s *Service) BlockUser(ctx context.Context, ref domain.UserRef, duration *time.Duration) error {
	user, err := s.store.GetUser(ctx, ref)
	if err != nil {
		return err
	}

	d := time.Duration(indefiniteBlockHorizon)
	if duration != nil {
		d = *duration
	}
	until := s.clock.Now().Add(d)

	if err := s.store.SetUserBlockedUntil(ctx, user.UserID, &until); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

// UnblockUser clears any block on the referenced user.
func (s *Service) UnblockUser(ctx context.Context, ref domain.UserRef) error {
	user, err := s.store.GetUser(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.store.SetUserBlockedUntil(ctx, user.UserID, nil); err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	return nil
}

// processMessage is one vote unit: parse, resolve, upsert identity, create
// the vote, aggregate, push the incremental report.
func (s *Service) processMessage(ctx context.Context, msg domain.ChatMessage) (string, error) {
	text := strings.TrimSpace(msg.Text)
	runes := []rune(text)
	if len(runes) < 2 {
		return resultIgnored, nil
	}

	code := strings.ToUpper(string(runes[:2]))
	country, ok := s.resolver.Resolve(code)
	if !ok {
		logIgnoredCode(code)
		return resultIgnored, nil
	}

	if err := s.store.EnsureCountry(ctx, country); err != nil {
		return resultError, fmt.Errorf("ensure country: %w", err)
	}

	user, err := s.store.UpsertUser(ctx, &domain.User{
		UserID:     msg.AuthorID,
		Username:   msg.AuthorName,
		ChannelURL: msg.AuthorChannelURL,
		ImageURL:   msg.AuthorImageURL,
		IsMod:      msg.IsModerator,
	})
	if err != nil {
		return resultError, fmt.Errorf("upsert user: %w", err)
	}

	// Point value is computed from the leveling snapshot before the block
	// check runs; a redacted vote still records it, for audit fidelity.
	vote := &domain.Vote{
		UserID:    user.UserID,
		Alpha2:    country.Alpha2,
		VoteCount: 1,
		Points:    basePoints + int64(math.Floor(user.Leveling)),
		XPGain:    domain.DefaultXPGain,
		Timestamp: s.clock.Now(),
	}

	events, err := s.engine.RegisterVote(ctx, vote)
	if err != nil {
		return resultError, fmt.Errorf("register vote: %w", err)
	}
	if vote.Redacted {
		return resultRedacted, nil
	}

	s.hub.Notify(s.reports.VoteReport(*vote, *user, country, events))
	return resultApplied, nil
}
