package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PracticeSource hands out the current practice profile and lets a watcher
// swap it in place, so hours/prices edits reach callers without a restart.
type PracticeSource struct {
	mu       sync.RWMutex
	practice PracticeConfig
}

// NewPracticeSource seeds a source with the loaded practice profile.
func NewPracticeSource(p PracticeConfig) *PracticeSource {
	return &PracticeSource{practice: p}
}

// Current returns a snapshot of the practice profile.
func (s *PracticeSource) Current() PracticeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.practice
}

func (s *PracticeSource) set(p PracticeConfig) {
	s.mu.Lock()
	s.practice = p
	s.mu.Unlock()
}

// WatchPractice reloads the practice section whenever the config file
// changes on disk. It watches the parent directory because editors replace
// files by rename. Blocks until ctx is done.
func WatchPractice(ctx context.Context, path string, src *PracticeSource, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous practice profile",
					"path", path, "error", err)
				continue
			}
			src.set(cfg.Practice)
			logger.Info("practice profile reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
