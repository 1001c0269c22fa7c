// Package youtube implements the chat feed on the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/pscheid92/livevote/internal/chat"
	"github.com/pscheid92/livevote/internal/domain"
)

// NewFeedFactory opens live chat sessions for the given video. The factory
// fails when the video has no active live chat; the watcher retries per its
// state machine.
func NewFeedFactory(apiKey, videoID string, clock clockwork.Clock) chat.FeedFactory {
	return func(ctx context.Context) (chat.Feed, error) {
		svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create youtube service: %w", err)
		}

		resp, err := svc.Videos.List([]string{"liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to look up video %s: %w", videoID, err)
		}
		if len(resp.Items) == 0 {
			return nil, fmt.Errorf("video %s not found", videoID)
		}

		details := resp.Items[0].LiveStreamingDetails
		if details == nil || details.ActiveLiveChatId == "" {
			return nil, fmt.Errorf("video %s has no active live chat", videoID)
		}

		return &feed{svc: svc, chatID: details.ActiveLiveChatId, clock: clock, alive: true}, nil
	}
}

type feed struct {
	svc       *youtube.Service
	chatID    string
	clock     clockwork.Clock
	pageToken string
	alive     bool
}

func (f *feed) Alive() bool { return f.alive }

func (f *feed) Close() {}

// Fetch returns the messages published since the previous page. A chat that
// has ended flips Alive to false instead of erroring, so the watcher takes
// the ended path rather than the failure path.
func (f *feed) Fetch(ctx context.Context) ([]domain.ChatMessage, error) {
	call := f.svc.LiveChatMessages.List(f.chatID, []string{"snippet", "authorDetails"}).Context(ctx)
	if f.pageToken != "" {
		call = call.PageToken(f.pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		if isChatEnded(err) {
			f.alive = false
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch live chat messages: %w", err)
	}

	f.pageToken = resp.NextPageToken
	if resp.OfflineAt != "" {
		f.alive = false
	}

	msgs := make([]domain.ChatMessage, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil || item.AuthorDetails == nil {
			continue
		}
		if item.Snippet.Type == "chatEndedEvent" {
			f.alive = false
			continue
		}
		if item.Snippet.DisplayMessage == "" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			ts = f.clock.Now()
		}

		msgs = append(msgs, domain.ChatMessage{
			AuthorID:         item.AuthorDetails.ChannelId,
			AuthorName:       item.AuthorDetails.DisplayName,
			AuthorChannelURL: item.AuthorDetails.ChannelUrl,
			AuthorImageURL:   item.AuthorDetails.ProfileImageUrl,
			IsModerator:      item.AuthorDetails.IsChatModerator,
			Text:             item.Snippet.DisplayMessage,
			Timestamp:        ts,
		})
	}
	return msgs, nil
}

func isChatEnded(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "liveChatEnded" {
			return true
		}
	}
	return false
}
