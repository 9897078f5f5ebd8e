package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"soundboard/pkg/audiofile"
)

const syncDebounce = 200 * time.Millisecond

// Sync rescans the current folder. Sounds whose file still exists keep
// their id, volume and hotkey; new files are appended and vanished ones
// dropped. It reports whether anything changed.
func (l *Library) Sync() (bool, error) {
	dir, ok := l.CurrentFolder()
	if !ok {
		return false, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("sync %s: %w", dir, err)
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if isAudioFile(path) {
			present[path] = true
		}
	}

	l.mu.RLock()
	known := make(map[string]bool, len(l.state.Sounds))
	for _, s := range l.state.Sounds {
		known[s.Path] = true
	}
	l.mu.RUnlock()

	// probe outside the lock
	var added []Sound
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if present[path] && !known[path] {
			added = append(added, l.newSound(path))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur := l.state.CurrentFolder; cur == nil || *cur != dir {
		// folder switched while scanning
		return false, nil
	}

	before := len(l.state.Sounds)
	l.state.Sounds = slices.DeleteFunc(l.state.Sounds, func(s Sound) bool {
		return filepath.Dir(s.Path) == dir && !present[s.Path]
	})
	removed := before - len(l.state.Sounds)

	for _, s := range added {
		if l.indexByPathLocked(s.Path) < 0 {
			l.state.Sounds = append(l.state.Sounds, s)
		}
	}

	changed := removed > 0 || len(added) > 0
	if changed {
		l.log.Info("Folder synced", "folder", dir, "added", len(added), "removed", removed)
	}

	return changed, nil
}

// Watch follows the current folder with fsnotify and calls Sync after audio
// files appear, disappear or are renamed. onChange runs after every Sync
// that changed the list. Watch returns when ctx ends or the library is
// closed.
func (l *Library) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	watched := ""
	follow := func(dir string) {
		if dir == watched {
			return
		}
		if watched != "" {
			_ = w.Remove(watched)
		}
		if err := w.Add(dir); err != nil {
			l.log.Warn("Cannot watch folder", "folder", dir, "err", err)
			watched = ""
			return
		}
		watched = dir
		l.log.Debug("Watching folder", "folder", dir)
	}

	if dir, ok := l.CurrentFolder(); ok {
		follow(dir)
	}

	timer := time.NewTimer(syncDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case <-l.closed:
			timer.Stop()
			return nil

		case dir := <-l.folderCh:
			follow(dir)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !audiofile.IsAudio(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				timer.Reset(syncDebounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("Folder watch error", "err", err)

		case <-timer.C:
			changed, err := l.Sync()
			if err != nil {
				l.log.Warn("Folder sync failed", "err", err)
				continue
			}
			if changed && onChange != nil {
				onChange()
			}
		}
	}
}

func (l *Library) indexByPathLocked(path string) int {
	for i, s := range l.state.Sounds {
		if s.Path == path {
			return i
		}
	}
	return -1
}
