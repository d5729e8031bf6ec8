package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

// Watch calls fn with the reloaded config every time the file at path is written
// or replaced, until ctx is done. Configs that fail to load are logged and skipped.
// The parent directory is watched so editors that save through a rename still
// trigger a reload.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		core.LogError("failed to create config watcher: %s", err)
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		core.LogError("failed to watch %s: %s", filepath.Dir(abs), err)
		return err
	}
	core.LogDebug("watching %s for changes", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				core.LogWarn("ignoring config change: %s", err)
				continue
			}
			core.LogInfo("config %s reloaded", abs)
			fn(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			core.LogError("config watcher: %s", err)
		}
	}
}
