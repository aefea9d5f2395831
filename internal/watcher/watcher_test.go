package watcher

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTopicForPath(t *testing.T) {
	cases := []struct {
		path  string
		topic string
		ok    bool
	}{
		{"/repo/threads/feature-auth.md", "feature-auth", true},
		{"/repo/threads/.feature-auth.lock", "", false},
		{"/repo/threads/manifest.json", "", false},
		{"/repo/threads/.hidden.md", "", false},
	}
	for _, tc := range cases {
		topic, ok := topicForPath(tc.path)
		if topic != tc.topic || ok != tc.ok {
			t.Errorf("topicForPath(%q) = (%q, %v), want (%q, %v)", tc.path, topic, ok, tc.topic, tc.ok)
		}
	}
}

func TestWatcherSyncsChangedTopic(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	synced := map[string]int{}

	syncFn := func(_ context.Context, topic string) error {
		mu.Lock()
		defer mu.Unlock()
		synced[topic]++
		return nil
	}

	w, err := New(dir, syncFn, &Config{
		DebounceInterval: 50 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watch time to establish before writing.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "feature-auth.md")
	if err := os.WriteFile(path, []byte("---\ntopic: feature-auth\n---\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".feature-auth.lock"), []byte("1:test"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := synced["feature-auth"]
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for sync dispatch")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if synced[".feature-auth"] != 0 || synced["feature-auth.lock"] != 0 {
		t.Errorf("lock file should not trigger sync: %v", synced)
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent"), func(context.Context, string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("watching a missing directory should fail")
	}
}

func TestNewRequiresSyncFunc(t *testing.T) {
	if _, err := New(t.TempDir(), nil, nil); err == nil {
		t.Fatal("nil sync func should be rejected")
	}
}
