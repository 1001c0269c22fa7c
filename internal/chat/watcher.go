// Package chat owns the feed subscription lifecycle: it polls the live chat
// while it is alive, fans messages into the dispatcher, and reconnects
// forever on end or failure.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livevote/internal/metrics"
)

const (
	defaultPollInterval = 300 * time.Millisecond
	defaultEndedDelay   = 2 * time.Second
	defaultFailedDelay  = 10 * time.Second
)

type exitReason int

const (
	exitCanceled exitReason = iota
	exitEnded
	exitFailed
)

// Watcher drives the Disconnected -> Connecting -> Live -> {Ended, Failed}
// loop. There is no retry cap: the loop only terminates when ctx is canceled.
type Watcher struct {
	factory    FeedFactory
	dispatcher Dispatcher
	clock      clockwork.Clock
	metrics    *metrics.WatcherMetrics

	pollInterval time.Duration
	endedDelay   time.Duration
	failedDelay  time.Duration
}

func NewWatcher(factory FeedFactory, dispatcher Dispatcher, clock clockwork.Clock, m *metrics.WatcherMetrics) *Watcher {
	return &Watcher{
		factory:      factory,
		dispatcher:   dispatcher,
		clock:        clock,
		metrics:      m,
		pollInterval: defaultPollInterval,
		endedDelay:   defaultEndedDelay,
		failedDelay:  defaultFailedDelay,
	}
}

// Run blocks until ctx is canceled. Feed failures never escape this loop.
func (w *Watcher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		slog.Info("Connecting to chat feed")
		feed, err := w.factory(ctx)
		if err != nil {
			slog.Error("Failed to open chat feed", "error", err)
			w.countReconnect("failed")
			if !w.sleep(ctx, w.failedDelay) {
				return
			}
			continue
		}

		reason := w.watch(ctx, feed)
		feed.Close()

		switch reason {
		case exitCanceled:
			return
		case exitEnded:
			slog.Info("Chat feed ended, reconnecting", "delay", w.endedDelay)
			w.countReconnect("ended")
			if !w.sleep(ctx, w.endedDelay) {
				return
			}
		case exitFailed:
			slog.Warn("Chat feed failed, reconnecting", "delay", w.failedDelay)
			w.countReconnect("failed")
			if !w.sleep(ctx, w.failedDelay) {
				return
			}
		}
	}
}

// watch polls the live feed until it ends, fails, or ctx is canceled.
// Messages are handed to the dispatcher without waiting for completion.
func (w *Watcher) watch(ctx context.Context, feed Feed) exitReason {
	slog.Info("Chat feed live")
	ticker := w.clock.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return exitCanceled
		case <-ticker.Chan():
			if !feed.Alive() {
				return exitEnded
			}
			msgs, err := feed.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return exitCanceled
				}
				slog.Error("Failed to fetch chat messages", "error", err)
				return exitFailed
			}
			if w.metrics != nil && len(msgs) > 0 {
				w.metrics.MessagesFetched.Add(float64(len(msgs)))
			}
			for _, msg := range msgs {
				w.dispatcher.Dispatch(msg)
			}
		}
	}
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (w *Watcher) countReconnect(reason string) {
	if w.metrics != nil {
		w.metrics.Reconnects.WithLabelValues(reason).Inc()
	}
}
