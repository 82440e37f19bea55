package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// WatchConfig watches the given files and emits the absolute path of a file
// once its changes have settled for debounce. The returned channel is closed
// when ctx is cancelled.
func WatchConfig(ctx context.Context, debounce time.Duration, files ...string) <-chan string {
	changed := make(chan string, len(files)+1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		close(changed)
		return changed
	}

	// Watch parent directories: atomic saves replace the inode, which drops
	// a watch set on the file itself.
	wanted := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve absolute path for watch file", "file", file)
			continue
		}
		wanted[absPath] = true
		dirs[filepath.Dir(absPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Could not watch directory", "dir", dir, "error", err)
		} else {
			slog.Debug("Watching configuration directory", "dir", dir)
		}
	}

	go func() {
		defer watcher.Close()

		var mu sync.Mutex
		timers := make(map[string]*time.Timer)
		var pending sync.WaitGroup
		defer func() {
			mu.Lock()
			for _, t := range timers {
				if t.Stop() {
					pending.Done()
				}
			}
			mu.Unlock()
			pending.Wait()
			close(changed)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || !wanted[name] {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}

				mu.Lock()
				if t, ok := timers[name]; ok && t.Stop() {
					pending.Done()
				}
				pending.Add(1)
				timers[name] = time.AfterFunc(debounce, func() {
					defer pending.Done()
					slog.Info("Configuration change detected", "file", name)
					select {
					case changed <- name:
					case <-ctx.Done():
					}
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return changed
}
