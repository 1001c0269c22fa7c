package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livevote/internal/domain"
	"github.com/pscheid92/livevote/internal/metrics"
)

// Milestone bases and floors. User level-ups fire at every power of ten of
// the leveling counter; country point milestones start at 1000.
const (
	milestoneBase       = 10
	userLevelMinimum    = 1
	countryPointMinimum = 1000
)

// Engine applies votes to the aggregate state. Each vote is one transaction:
// the ledger append, the counter updates, and any milestone events commit
// together or not at all. Row locks taken by the store serialize concurrent
// votes touching the same user or country.
type Engine struct {
	store   domain.Store
	clock   clockwork.Clock
	metrics *metrics.VoteMetrics
}

func NewEngine(store domain.Store, clock clockwork.Clock, m *metrics.VoteMetrics) *Engine {
	return &Engine{store: store, clock: clock, metrics: m}
}

// RegisterVote persists the vote and folds it into the aggregates.
//
// A vote from a user whose block is still active is persisted redacted, with
// no aggregate or event changes. A block that has already lapsed is cleared
// and the vote processes normally. On success the created events are
// returned, user milestones first, then country milestones.
func (e *Engine) RegisterVote(ctx context.Context, vote *domain.Vote) ([]domain.Event, error) {
	var created []domain.Event

	err := e.store.InTx(ctx, func(tx domain.TxStore) error {
		user, err := tx.GetUserForUpdate(ctx, vote.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		if user.BlockedUntil != nil {
			if e.clock.Now().Before(*user.BlockedUntil) {
				vote.Redacted = true
				return tx.AppendVote(ctx, vote)
			}
			user.BlockedUntil = nil
		}

		cache, err := tx.GetCountryCacheForUpdate(ctx, vote.Alpha2)
		if err != nil {
			return fmt.Errorf("load country cache: %w", err)
		}

		oldLeveling := user.Leveling
		oldPoints := cache.Points

		user.Leveling += vote.XPGain
		user.TotalVotes += float64(vote.VoteCount)
		user.TotalPoints += float64(vote.Points)
		ts := vote.Timestamp
		user.LatestVote = &ts
		cache.Votes += vote.VoteCount
		cache.Points += vote.Points

		if err := tx.AppendVote(ctx, vote); err != nil {
			return fmt.Errorf("append vote: %w", err)
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		if err := tx.SaveCountryCache(ctx, cache); err != nil {
			return fmt.Errorf("save country cache: %w", err)
		}

		created = created[:0]
		for _, m := range powerMilestones(oldLeveling, user.Leveling, milestoneBase, userLevelMinimum) {
			ev := domain.Event{
				Type:      domain.EventUserLevelUp,
				UserID:    user.UserID,
				Milestone: m,
				Timestamp: vote.Timestamp,
			}
			if err := tx.AppendEvent(ctx, &ev); err != nil {
				return fmt.Errorf("append level-up event: %w", err)
			}
			created = append(created, ev)
		}
		for _, m := range powerMilestones(float64(oldPoints), float64(cache.Points), milestoneBase, countryPointMinimum) {
			ev := domain.Event{
				Type:      domain.EventCountryPoints,
				UserID:    user.UserID,
				Alpha2:    cache.Alpha2,
				Milestone: m,
				Timestamp: vote.Timestamp,
			}
			if err := tx.AppendEvent(ctx, &ev); err != nil {
				return fmt.Errorf("append country event: %w", err)
			}
			created = append(created, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		for _, ev := range created {
			e.metrics.MilestonesTotal.WithLabelValues(ev.Type).Inc()
		}
	}
	for _, ev := range created {
		slog.Info("Milestone reached", "type", ev.Type, "user_id", ev.UserID, "alpha2", ev.Alpha2, "milestone", ev.Milestone)
	}

	return created, nil
}
