package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It blocks until ctx is cancelled,
// so callers run it in a goroutine.
//
// A reload that fails (invalid YAML, failed validation) is logged and the
// previous config stays active; onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	logging.Info("Watching config for changes", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often write via rename (atomic save), so catch
			// Create as well as Write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logging.Warn("Config reload failed, keeping previous config",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}

			logging.Info("Config reloaded", zap.String("path", path))
			onChange(cfg)

			// Re-add the file in case an atomic save replaced the inode
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Config watcher error", zap.Error(err))
		}
	}
}
