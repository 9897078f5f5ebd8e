package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.mp3")

	lib := New(WithProber(noProbe))
	if _, err := lib.LoadFolder(dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- lib.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// give the watcher time to register the folder
	time.Sleep(100 * time.Millisecond)
	touch(t, dir, "b.wav")

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not sync new file")
	}

	found := false
	for _, s := range lib.Sounds() {
		if s.Path == filepath.Join(dir, "b.wav") {
			found = true
		}
	}
	if !found {
		t.Error("b.wav missing after sync")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatchStopsOnClose(t *testing.T) {
	lib := New(WithProber(noProbe))

	done := make(chan error, 1)
	go func() { done <- lib.Watch(context.Background(), nil) }()

	lib.Close()
	lib.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after Close")
	}
}
