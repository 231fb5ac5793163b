package player

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
)

// Publisher receives snapshots worth pushing to connected clients. The
// WebSocket connection manager implements it.
type Publisher interface {
	Publish(snap Snapshot)
}

// DefaultPollInterval is how often the watcher samples the player.
const DefaultPollInterval = 5 * time.Second

// Watcher polls the controller and publishes a snapshot whenever playback
// state changes outside the remote's own doing (track ran out, user
// touched the Music app directly).
type Watcher struct {
	controller Controller
	publisher  Publisher
	interval   time.Duration
}

// NewWatcher creates a Watcher. A non-positive interval falls back to
// DefaultPollInterval.
func NewWatcher(c Controller, p Publisher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{controller: c, publisher: p, interval: interval}
}

// Run polls until ctx is cancelled. Poll failures are logged at debug
// level only: the Music app being closed is a normal condition, not an
// error worth flooding the log with every few seconds.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last Snapshot
	var have bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := w.controller.CurrentSnapshot()
			if err != nil {
				logging.Debug("State poll failed", zap.Error(err))
				continue
			}
			if have && !changed(last, snap) {
				continue
			}
			last, have = snap, true
			w.publisher.Publish(snap)
		}
	}
}

// changed reports whether the parts of the snapshot worth pushing differ.
// Position advances constantly during playback and clients interpolate it
// locally, so it never triggers a push by itself.
func changed(a, b Snapshot) bool {
	return a.State != b.State ||
		a.Title != b.Title ||
		a.Artist != b.Artist ||
		a.Album != b.Album ||
		a.Volume != b.Volume ||
		a.SystemVolume != b.SystemVolume
}
