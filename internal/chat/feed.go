package chat

import (
	"context"

	"github.com/pscheid92/livevote/internal/domain"
)

// Feed is one live chat session. The watcher polls it while it is alive and
// tears it down when it ends or errors.
type Feed interface {
	// Alive reports whether the stream's chat is still open.
	Alive() bool
	// Fetch returns the messages that arrived since the previous call.
	Fetch(ctx context.Context) ([]domain.ChatMessage, error)
	// Close releases the session.
	Close()
}

// FeedFactory opens a new feed session for the target stream.
type FeedFactory func(ctx context.Context) (Feed, error)

// Dispatcher receives each fetched message. Dispatch must not block the
// watcher; implementations process messages as independent concurrent units.
type Dispatcher interface {
	Dispatch(msg domain.ChatMessage)
}
