package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abczzz13/proxytrace/internal/config"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the config file and applies it to the server when it
// changes.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	path    string
	delay   time.Duration
}

// NewReloader creates a file watcher for path.
func NewReloader(server *Server, path string) (*Reloader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &Reloader{
		watcher: watcher,
		server:  server,
		path:    path,
		delay:   reloadDebounce,
	}, nil
}

// Run watches for file changes and reloads the trust configuration. Blocks
// until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Editors write in bursts; reload once the file has been quiet.
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.delay, func() { r.reload(ctx) })
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.server.logger.Warn("file watcher error", "error", err)
		}
	}
}

// reload is a no-op once ctx is done, so a timer that fired during
// shutdown cannot swap the tracer.
func (r *Reloader) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cfg, err := config.Load(r.path)
	if err == nil {
		err = r.server.Apply(cfg)
	}

	if err != nil {
		r.server.logger.Error("hot-reload failed; keeping previous trust configuration", "path", r.path, "error", err)
		return
	}

	r.server.logger.Info("hot-reload: trust configuration reloaded", "path", r.path, "trust", []string(cfg.Trust))
}
