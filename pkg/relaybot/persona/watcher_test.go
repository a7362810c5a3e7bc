package persona

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStoreReplace(t *testing.T) {
	s := NewStore(&Document{Name: "Ava"})
	if !strings.Contains(s.Prompt(), "You are Ava.") {
		t.Fatalf("unexpected prompt: %q", s.Prompt())
	}
	s.Replace(&Document{Name: "Max"})
	if !strings.Contains(s.Prompt(), "You are Max.") {
		t.Errorf("prompt not replaced: %q", s.Prompt())
	}
	if s.Document().Name != "Max" {
		t.Errorf("Document().Name = %q", s.Document().Name)
	}

	empty := NewStore(nil)
	if empty.Document() == nil {
		t.Error("nil document should be replaced by an empty one")
	}
}

func TestWatcherCheck(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "character.json", `{"name": "Ava"}`)

	store := NewStore(&Document{Name: "Ava"})
	w := NewWatcher(path, time.Hour, store, slog.Default())

	t.Run("first check picks up current content", func(t *testing.T) {
		if !w.check() {
			t.Error("expected initial content to be loaded")
		}
	})

	t.Run("unchanged content is ignored", func(t *testing.T) {
		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			t.Fatalf("touch: %v", err)
		}
		if w.check() {
			t.Error("touch without content change should not reload")
		}
	})

	t.Run("changed content reloads", func(t *testing.T) {
		writeFile(t, dir, "character.json", `{"name": "Max", "bio": "new bio"}`)
		if !w.check() {
			t.Fatal("expected reload")
		}
		if !strings.Contains(store.Prompt(), "You are Max.") || !strings.Contains(store.Prompt(), "new bio") {
			t.Errorf("store not updated: %q", store.Prompt())
		}
	})

	t.Run("invalid content keeps previous persona", func(t *testing.T) {
		writeFile(t, dir, "character.json", `{"name": `)
		if w.check() {
			t.Error("invalid file must not reload")
		}
		if store.Document().Name != "Max" {
			t.Errorf("persona changed to %q", store.Document().Name)
		}
	})
}

func TestWatcherStartStops(t *testing.T) {
	path := writeFile(t, t.TempDir(), "character.json", `{"name": "Ava"}`)
	w := NewWatcher(path, 10*time.Millisecond, NewStore(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
