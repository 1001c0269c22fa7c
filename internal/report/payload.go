package report

import (
	"time"

	"github.com/pscheid92/livevote/internal/domain"
)

// Wire payload types. Every field a client sees is declared here explicitly;
// nothing is derived from model structs by reflection.

type CountryPayload struct {
	Alpha2 string `json:"alpha2"`
	Alpha3 string `json:"alpha3"`
	Name   string `json:"name"`
}

type CountryRankPayload struct {
	Country CountryPayload `json:"country"`
	Votes   int64          `json:"votes"`
	Points  int64          `json:"points"`
}

type UserPayload struct {
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	ChannelURL  string     `json:"channel_url"`
	ImageURL    string     `json:"image_url"`
	IsMod       bool       `json:"is_mod"`
	Leveling    float64    `json:"leveling"`
	TotalVotes  float64    `json:"total_votes"`
	TotalPoints float64    `json:"total_points"`
	LatestVote  *time.Time `json:"latest_vote"`
}

type UserRankPayload struct {
	UserPayload
	TopCountry string `json:"top_country"`
}

type VotePayload struct {
	VoteID    int64          `json:"vote_id"`
	UserID    string         `json:"user_id"`
	Username  string         `json:"username"`
	Country   CountryPayload `json:"country"`
	VoteCount int64          `json:"vote_count"`
	Points    int64          `json:"points"`
	XPGain    float64        `json:"xp_gain"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventPayload struct {
	EventID     int64     `json:"event_id"`
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Alpha2      string    `json:"alpha2,omitempty"`
	CountryName string    `json:"country_name,omitempty"`
	Milestone   int64     `json:"milestone"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatusPayload is the full snapshot pushed to every client on connect and
// on the periodic refresh.
type StatusPayload struct {
	Type           string               `json:"type"`
	CountryRanking []CountryRankPayload `json:"country_ranking"`
	UserRanking    []UserRankPayload    `json:"user_ranking"`
	LatestVotes    []VotePayload        `json:"latest_votes"`
	LatestEvents   []EventPayload       `json:"latest_events"`
}

// UpdatePayload is the incremental push for one newly registered vote.
type UpdatePayload struct {
	Type   string         `json:"type"`
	Vote   VotePayload    `json:"vote"`
	Events []EventPayload `json:"events"`
}

func countryPayload(c domain.Country) CountryPayload {
	return CountryPayload{Alpha2: c.Alpha2, Alpha3: c.Alpha3, Name: c.Name}
}

func userPayload(u domain.User) UserPayload {
	return UserPayload{
		UserID:      u.UserID,
		Username:    u.Username,
		ChannelURL:  u.ChannelURL,
		ImageURL:    u.ImageURL,
		IsMod:       u.IsMod,
		Leveling:    u.Leveling,
		TotalVotes:  u.TotalVotes,
		TotalPoints: u.TotalPoints,
		LatestVote:  u.LatestVote,
	}
}

func votePayload(v domain.Vote, username string, country domain.Country) VotePayload {
	return VotePayload{
		VoteID:    v.VoteID,
		UserID:    v.UserID,
		Username:  username,
		Country:   countryPayload(country),
		VoteCount: v.VoteCount,
		Points:    v.Points,
		XPGain:    v.XPGain,
		Timestamp: v.Timestamp,
	}
}

func eventPayload(ev domain.Event, username, countryName string) EventPayload {
	return EventPayload{
		EventID:     ev.EventID,
		Type:        ev.Type,
		UserID:      ev.UserID,
		Username:    username,
		Alpha2:      ev.Alpha2,
		CountryName: countryName,
		Milestone:   ev.Milestone,
		Timestamp:   ev.Timestamp,
	}
}
