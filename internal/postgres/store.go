package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/livevote/internal/domain"
)

const userColumns = `user_id, username, channel_url, image_url, is_mod,
	leveling, total_votes, total_points, blocked_until, latest_vote,
	created_at, updated_at`

// Store implements domain.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx runs fn inside a single transaction. Everything fn writes commits
// together or not at all; a context deadline rolls the whole unit back.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, username, channel_url, image_url, is_mod, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			channel_url = EXCLUDED.channel_url,
			image_url = EXCLUDED.image_url,
			is_mod = EXCLUDED.is_mod,
			updated_at = NOW()
		RETURNING `+userColumns,
		user.UserID, user.Username, user.ChannelURL, user.ImageURL, user.IsMod)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, ref domain.UserRef) (*domain.User, error) {
	var row pgx.Row
	switch {
	case ref.UserID != "":
		row = s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, ref.UserID)
	case ref.Username != "":
		row = s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 ORDER BY user_id LIMIT 1`, ref.Username)
	default:
		return nil, domain.ErrUserNotFound
	}

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Store) SetUserBlockedUntil(ctx context.Context, userID string, until *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET blocked_until = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, until)
	if err != nil {
		return fmt.Errorf("failed to set blocked_until: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureCountry creates the country and its cache row on first vote,
// refreshing alpha3/name when the reference data changed.
func (s *Store) EnsureCountry(ctx context.Context, country domain.Country) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO country_caches (alpha2) VALUES ($1)
		ON CONFLICT (alpha2) DO NOTHING
	`, country.Alpha2); err != nil {
		return fmt.Errorf("failed to ensure country cache: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO countries (alpha2, alpha3, name) VALUES ($1, $2, $3)
		ON CONFLICT (alpha2) DO UPDATE SET
			alpha3 = EXCLUDED.alpha3,
			name = EXCLUDED.name
	`, country.Alpha2, country.Alpha3, country.Name); err != nil {
		return fmt.Errorf("failed to ensure country: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecalcCaches rebuilds every country cache from the sums over non-redacted
// votes, in one transaction. Run at startup to repair any drift.
func (s *Store) RecalcCaches(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `UPDATE country_caches SET votes = 0, points = 0`); err != nil {
		return fmt.Errorf("failed to zero caches: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE country_caches cc
		SET votes = s.votes, points = s.points
		FROM (
			SELECT alpha2, SUM(vote_count) AS votes, SUM(points) AS points
			FROM votes
			WHERE NOT redacted
			GROUP BY alpha2
		) s
		WHERE cc.alpha2 = s.alpha2
	`); err != nil {
		return fmt.Errorf("failed to recalculate caches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// --- transactional view ---

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetUserForUpdate(ctx context.Context, userID string) (*domain.User, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return u, nil
}

func (t *txStore) SaveUser(ctx context.Context, user *domain.User) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE users
		SET username = $2, channel_url = $3, image_url = $4, is_mod = $5,
			leveling = $6, total_votes = $7, total_points = $8,
			blocked_until = $9, latest_vote = $10, updated_at = NOW()
		WHERE user_id = $1
	`, user.UserID, user.Username, user.ChannelURL, user.ImageURL, user.IsMod,
		user.Leveling, user.TotalVotes, user.TotalPoints,
		user.BlockedUntil, user.LatestVote)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (t *txStore) GetCountryCacheForUpdate(ctx context.Context, alpha2 string) (*domain.CountryCache, error) {
	var cache domain.CountryCache
	err := t.tx.QueryRow(ctx, `
		SELECT alpha2, votes, points FROM country_caches WHERE alpha2 = $1 FOR UPDATE
	`, alpha2).Scan(&cache.Alpha2, &cache.Votes, &cache.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCountryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock country cache: %w", err)
	}
	return &cache, nil
}

func (t *txStore) SaveCountryCache(ctx context.Context, cache *domain.CountryCache) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE country_caches SET votes = $2, points = $3 WHERE alpha2 = $1
	`, cache.Alpha2, cache.Votes, cache.Points)
	if err != nil {
		return fmt.Errorf("failed to save country cache: %w", err)
	}
	return nil
}

func (t *txStore) AppendVote(ctx context.Context, vote *domain.Vote) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO votes (user_id, alpha2, vote_count, points, xp_gain, redacted, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING vote_id
	`, vote.UserID, vote.Alpha2, vote.VoteCount, vote.Points, vote.XPGain,
		vote.Redacted, vote.Timestamp).Scan(&vote.VoteID)
	if err != nil {
		return fmt.Errorf("failed to append vote: %w", err)
	}
	return nil
}

func (t *txStore) AppendEvent(ctx context.Context, event *domain.Event) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO events (type, user_id, alpha2, milestone, timestamp)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING event_id
	`, event.Type, event.UserID, event.Alpha2, event.Milestone, event.Timestamp).Scan(&event.EventID)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID, &u.Username, &u.ChannelURL, &u.ImageURL, &u.IsMod,
		&u.Leveling, &u.TotalVotes, &u.TotalPoints, &u.BlockedUntil, &u.LatestVote,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
