package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/livevote/internal/domain"
)

// ReportStore implements the read side for the ranking/snapshot service.
// Tie-breaks are deterministic: alpha2 ascending for countries, user_id
// ascending for users.
type ReportStore struct {
	pool *pgxpool.Pool
}

func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

func (r *ReportStore) RankCountries(ctx context.Context, by domain.CountryRankKey) ([]domain.CountryRank, error) {
	var orderBy string
	switch by {
	case domain.RankCountriesByVotes:
		orderBy = "cc.votes"
	case domain.RankCountriesByPoints:
		orderBy = "cc.points"
	default:
		return nil, fmt.Errorf("invalid country rank key: %q", by)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.alpha2, c.alpha3, c.name, cc.votes, cc.points
		FROM countries c
		JOIN country_caches cc ON cc.alpha2 = c.alpha2
		ORDER BY `+orderBy+` DESC, c.alpha2 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to rank countries: %w", err)
	}
	defer rows.Close()

	var ranking []domain.CountryRank
	for rows.Next() {
		var cr domain.CountryRank
		if err := rows.Scan(&cr.Country.Alpha2, &cr.Country.Alpha3, &cr.Country.Name, &cr.Votes, &cr.Points); err != nil {
			return nil, fmt.Errorf("failed to scan country rank: %w", err)
		}
		ranking = append(ranking, cr)
	}
	return ranking, rows.Err()
}

func (r *ReportStore) RankUsers(ctx context.Context, key domain.UserRankKey, limit int, now time.Time) ([]domain.UserRank, error) {
	var orderBy string
	switch key {
	case domain.RankByLeveling:
		orderBy = "u.leveling"
	case domain.RankByTotalPoints:
		orderBy = "u.total_points"
	case domain.RankByTotalVotes:
		orderBy = "u.total_votes"
	default:
		return nil, fmt.Errorf("invalid user rank key: %q", key)
	}

	// Top country per user: highest summed vote_count over non-redacted
	// votes, alpha2 ascending on ties.
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`, COALESCE(tc.alpha2, '') AS top_country
		FROM users u
		LEFT JOIN LATERAL (
			SELECT v.alpha2
			FROM votes v
			WHERE v.user_id = u.user_id AND NOT v.redacted
			GROUP BY v.alpha2
			ORDER BY SUM(v.vote_count) DESC, v.alpha2 ASC
			LIMIT 1
		) tc ON TRUE
		WHERE u.blocked_until IS NULL OR u.blocked_until <= $1
		ORDER BY `+orderBy+` DESC, u.user_id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}
	defer rows.Close()

	var ranking []domain.UserRank
	for rows.Next() {
		var ur domain.UserRank
		if err := rows.Scan(
			&ur.User.UserID, &ur.User.Username, &ur.User.ChannelURL, &ur.User.ImageURL, &ur.User.IsMod,
			&ur.User.Leveling, &ur.User.TotalVotes, &ur.User.TotalPoints,
			&ur.User.BlockedUntil, &ur.User.LatestVote,
			&ur.User.CreatedAt, &ur.User.UpdatedAt,
			&ur.TopCountry,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user rank: %w", err)
		}
		ranking = append(ranking, ur)
	}
	return ranking, rows.Err()
}

func (r *ReportStore) LatestVotes(ctx context.Context, limit int) ([]domain.VoteDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT v.vote_id, v.user_id, v.alpha2, v.vote_count, v.points, v.xp_gain, v.redacted, v.timestamp,
			u.username, c.alpha3, c.name
		FROM votes v
		JOIN users u ON u.user_id = v.user_id
		JOIN countries c ON c.alpha2 = v.alpha2
		WHERE NOT v.redacted
		ORDER BY v.timestamp DESC, v.vote_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.VoteDetail
	for rows.Next() {
		var vd domain.VoteDetail
		if err := rows.Scan(
			&vd.Vote.VoteID, &vd.Vote.UserID, &vd.Vote.Alpha2, &vd.Vote.VoteCount,
			&vd.Vote.Points, &vd.Vote.XPGain, &vd.Vote.Redacted, &vd.Vote.Timestamp,
			&vd.Username, &vd.Country.Alpha3, &vd.Country.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		vd.Country.Alpha2 = vd.Vote.Alpha2
		votes = append(votes, vd)
	}
	return votes, rows.Err()
}

func (r *ReportStore) LatestEvents(ctx context.Context, limit int) ([]domain.EventDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.event_id, e.type, e.user_id, COALESCE(e.alpha2, ''), e.milestone, e.timestamp,
			u.username, COALESCE(c.name, '')
		FROM events e
		JOIN users u ON u.user_id = e.user_id
		LEFT JOIN countries c ON c.alpha2 = e.alpha2
		ORDER BY e.timestamp DESC, e.event_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventDetail
	for rows.Next() {
		var ed domain.EventDetail
		if err := rows.Scan(
			&ed.Event.EventID, &ed.Event.Type, &ed.Event.UserID, &ed.Event.Alpha2,
			&ed.Event.Milestone, &ed.Event.Timestamp,
			&ed.Username, &ed.CountryName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ed)
	}
	return events, rows.Err()
}
