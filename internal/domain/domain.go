package domain

import (
	"context"
	"time"
)

// DefaultXPGain is the leveling increment a single vote grants its voter.
const DefaultXPGain = 0.04

// Event types created by the aggregation engine.
const (
	EventUserLevelUp   = "user_level_up"
	EventCountryPoints = "country_points"
)

// --- Model types ---

// User is a chat participant identified by the platform's channel ID.
// Identity fields (Username, ChannelURL, ImageURL, IsMod) are overwritten
// from the feed on every vote; the feed is the source of truth.
type User struct {
	UserID     string `db:"user_id"`
	Username   string `db:"username"`
	ChannelURL string `db:"channel_url"`
	ImageURL   string `db:"image_url"`
	IsMod      bool   `db:"is_mod"`

	Leveling     float64    `db:"leveling"`
	TotalVotes   float64    `db:"total_votes"`
	TotalPoints  float64    `db:"total_points"`
	BlockedUntil *time.Time `db:"blocked_until"`
	LatestVote   *time.Time `db:"latest_vote"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Country is immutable ISO reference data, one-to-one with a CountryCache.
type Country struct {
	Alpha2 string `db:"alpha2"`
	Alpha3 string `db:"alpha3"`
	Name   string `db:"name"`
}

// CountryCache holds the running vote/point aggregates for one country.
// Invariant: equals the sums of vote_count/points over all non-redacted
// votes for that country, reproducible by RecalcCaches.
type CountryCache struct {
	Alpha2 string `db:"alpha2"`
	Votes  int64  `db:"votes"`
	Points int64  `db:"points"`
}

// Vote is an append-only ledger entry. Once created it is mutated at most
// once (redaction) and never deleted.
type Vote struct {
	VoteID    int64     `db:"vote_id"`
	UserID    string    `db:"user_id"`
	Alpha2    string    `db:"alpha2"`
	VoteCount int64     `db:"vote_count"`
	Points    int64     `db:"points"`
	XPGain    float64   `db:"xp_gain"`
	Redacted  bool      `db:"redacted"`
	Timestamp time.Time `db:"timestamp"`
}

// Event records a single milestone crossing. Events are created only by the
// aggregation engine, inside the transaction that caused them.
type Event struct {
	EventID   int64     `db:"event_id"`
	Type      string    `db:"type"`
	UserID    string    `db:"user_id"`
	Alpha2    string    `db:"alpha2"` // empty for user_level_up
	Milestone int64     `db:"milestone"`
	Timestamp time.Time `db:"timestamp"`
}

// ChatMessage is one raw inbound message from the feed collaborator.
type ChatMessage struct {
	AuthorID         string
	AuthorName       string
	AuthorChannelURL string
	AuthorImageURL   string
	IsModerator      bool
	Text             string
	Timestamp        time.Time
}

// UserRef addresses a user by ID or by display name for admin operations.
// Exactly one field should be set; ID wins when both are.
type UserRef struct {
	UserID   string
	Username string
}

// --- Ranking views ---

// CountryRank is one row of the country leaderboard.
type CountryRank struct {
	Country Country
	Votes   int64
	Points  int64
}

// UserRank is one row of the user leaderboard, enriched with the user's
// top country (highest summed vote_count among non-redacted votes).
type UserRank struct {
	User       User
	TopCountry string
}

// VoteDetail is a vote joined with the voter's and country's display data.
type VoteDetail struct {
	Vote     Vote
	Username string
	Country  Country
}

// EventDetail is an event joined with the actor's and country's display data.
type EventDetail struct {
	Event       Event
	Username    string
	CountryName string
}

// UserRankKey selects the metric the user leaderboard is ordered by.
type UserRankKey string

const (
	RankByLeveling    UserRankKey = "leveling"
	RankByTotalPoints UserRankKey = "total_points"
	RankByTotalVotes  UserRankKey = "total_votes"
)

// CountryRankKey selects the metric the country leaderboard is ordered by.
type CountryRankKey string

const (
	RankCountriesByPoints CountryRankKey = "points"
	RankCountriesByVotes  CountryRankKey = "votes"
)

// --- Interfaces ---

// TxStore is the unit-of-work view of the store: every method runs inside
// the surrounding transaction and commits or rolls back with it. ForUpdate
// reads take row locks, serializing concurrent vote units that touch the
// same user or country.
type TxStore interface {
	GetUserForUpdate(ctx context.Context, userID string) (*User, error)
	SaveUser(ctx context.Context, user *User) error
	GetCountryCacheForUpdate(ctx context.Context, alpha2 string) (*CountryCache, error)
	SaveCountryCache(ctx context.Context, cache *CountryCache) error
	AppendVote(ctx context.Context, vote *Vote) error
	AppendEvent(ctx context.Context, event *Event) error
}

// Store abstracts persistence so storage is swappable in tests.
type Store interface {
	// InTx runs fn inside one transaction; fn's writes commit together or
	// not at all.
	InTx(ctx context.Context, fn func(tx TxStore) error) error

	UpsertUser(ctx context.Context, user *User) (*User, error)
	GetUser(ctx context.Context, ref UserRef) (*User, error)
	SetUserBlockedUntil(ctx context.Context, userID string, until *time.Time) error
	EnsureCountry(ctx context.Context, country Country) error
}

// ReportStore is the read side used by the ranking/snapshot service.
type ReportStore interface {
	RankCountries(ctx context.Context, by CountryRankKey) ([]CountryRank, error)
	RankUsers(ctx context.Context, key UserRankKey, limit int, now time.Time) ([]UserRank, error)
	LatestVotes(ctx context.Context, limit int) ([]VoteDetail, error)
	LatestEvents(ctx context.Context, limit int) ([]EventDetail, error)
}

// CountryResolver resolves a raw country code to ISO reference data.
type CountryResolver interface {
	Resolve(code string) (Country, bool)
}
