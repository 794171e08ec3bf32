// Package watch re-runs an action whenever a console log file changes.
//
// It backs "cisift extract --follow": the extraction is rebuilt from the
// file after each burst of writes, so the printed excerpt always reflects
// the log as it currently stands. Log rotation (the file being renamed or
// removed) either ends the watch or, with FollowRotate, waits for the file
// to reappear and continues with it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long writes must pause before OnChange runs.
	DefaultDebounce = 250 * time.Millisecond
	// DefaultRotateTimeout bounds the wait for a rotated file to reappear.
	DefaultRotateTimeout = 10 * time.Second

	pollInterval = 100 * time.Millisecond
)

// ErrRotated is returned by Run when the file is rotated and FollowRotate
// is off.
var ErrRotated = errors.New("file rotated")

// Options configures a Watcher.
type Options struct {
	Path          string
	Debounce      time.Duration
	FollowRotate  bool
	RotateTimeout time.Duration
	Logger        *slog.Logger

	// OnChange is called once at start and again after every settled burst
	// of changes. A returned error ends Run.
	OnChange func(ctx context.Context) error
}

// Watcher follows one file.
type Watcher struct {
	opts    Options
	watcher *fsnotify.Watcher
}

// New validates opts and creates a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Path == "" {
		return nil, errors.New("watch: no path")
	}
	if opts.OnChange == nil {
		return nil, errors.New("watch: no OnChange callback")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RotateTimeout <= 0 {
		opts.RotateTimeout = DefaultRotateTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{opts: opts}, nil
}

// Run blocks until ctx is cancelled, OnChange fails, or the file is rotated
// without FollowRotate. Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.opts.Path); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	defer watcher.Close()
	w.watcher = watcher

	if err := watcher.Add(w.opts.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Path, err)
	}

	if err := w.opts.OnChange(ctx); err != nil {
		return err
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if timer == nil {
					timer = time.NewTimer(w.opts.Debounce)
				} else {
					timer.Reset(w.opts.Debounce)
				}
				fire = timer.C
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.opts.Logger.Info("log rotated", "file", w.opts.Path)
				if err := w.reopen(ctx); err != nil {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				if err := w.opts.OnChange(ctx); err != nil {
					return err
				}
			}

		case <-fire:
			fire = nil
			w.opts.Logger.Debug("log changed", "file", w.opts.Path)
			if err := w.opts.OnChange(ctx); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// reopen waits for a rotated file to reappear and watches it again.
func (w *Watcher) reopen(ctx context.Context) error {
	if !w.opts.FollowRotate {
		return ErrRotated
	}
	_ = w.watcher.Remove(w.opts.Path)

	timeout := time.After(w.opts.RotateTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("timeout waiting for rotated file %s to reappear", w.opts.Path)
		case <-ticker.C:
			if _, err := os.Stat(w.opts.Path); err != nil {
				continue
			}
			if err := w.watcher.Add(w.opts.Path); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}
			w.opts.Logger.Info("following new file", "file", w.opts.Path)
			return nil
		}
	}
}
