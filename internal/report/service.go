// Package report composes leaderboard and activity views from the current
// aggregate state.
package report

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livevote/internal/domain"
)

const (
	defaultUserLimit   = 20
	defaultLatestLimit = 20
)

// Service builds the status snapshot and per-vote update payloads.
// It only reads; all aggregate mutation belongs to the game engine.
type Service struct {
	store domain.ReportStore
	clock clockwork.Clock
}

func NewService(store domain.ReportStore, clock clockwork.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// StatusReport assembles the full snapshot: country ranking by points, top
// users by leveling, and the latest votes and events.
func (s *Service) StatusReport(ctx context.Context) (*StatusPayload, error) {
	countries, err := s.store.RankCountries(ctx, domain.RankCountriesByPoints)
	if err != nil {
		return nil, fmt.Errorf("rank countries: %w", err)
	}

	users, err := s.store.RankUsers(ctx, domain.RankByLeveling, defaultUserLimit, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("rank users: %w", err)
	}

	votes, err := s.store.LatestVotes(ctx, defaultLatestLimit)
	if err != nil {
		return nil, fmt.Errorf("latest votes: %w", err)
	}

	events, err := s.store.LatestEvents(ctx, defaultLatestLimit)
	if err != nil {
		return nil, fmt.Errorf("latest events: %w", err)
	}

	payload := &StatusPayload{
		Type:           "status",
		CountryRanking: make([]CountryRankPayload, 0, len(countries)),
		UserRanking:    make([]UserRankPayload, 0, len(users)),
		LatestVotes:    make([]VotePayload, 0, len(votes)),
		LatestEvents:   make([]EventPayload, 0, len(events)),
	}
	for _, c := range countries {
		payload.CountryRanking = append(payload.CountryRanking, CountryRankPayload{
			Country: countryPayload(c.Country),
			Votes:   c.Votes,
			Points:  c.Points,
		})
	}
	for _, u := range users {
		payload.UserRanking = append(payload.UserRanking, UserRankPayload{
			UserPayload: userPayload(u.User),
			TopCountry:  u.TopCountry,
		})
	}
	for _, v := range votes {
		payload.LatestVotes = append(payload.LatestVotes, votePayload(v.Vote, v.Username, v.Country))
	}
	for _, ev := range events {
		payload.LatestEvents = append(payload.LatestEvents, eventPayload(ev.Event, ev.Username, ev.CountryName))
	}

	return payload, nil
}

// VoteReport assembles the incremental update for one registered vote and
// the events it fired. The caller supplies the voter and country it already
// holds; no storage round trip happens here.
func (s *Service) VoteReport(vote domain.Vote, user domain.User, country domain.Country, events []domain.Event) *UpdatePayload {
	payload := &UpdatePayload{
		Type:   "update",
		Vote:   votePayload(vote, user.Username, country),
		Events: make([]EventPayload, 0, len(events)),
	}
	for _, ev := range events {
		name := ""
		if ev.Alpha2 != "" {
			name = country.Name
		}
		payload.Events = append(payload.Events, eventPayload(ev, user.Username, name))
	}
	return payload
}
