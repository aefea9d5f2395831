package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		Timeout:    200 * time.Millisecond,
		TTL:        time.Hour,
		RetryDelay: 20 * time.Millisecond,
		HolderName: "lock-test",
	}
}

func TestAcquireRelease(t *testing.T) {
	path := PathFor(t.TempDir(), "topic-a")

	ok, err := Acquire(path, testOptions())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if !ok {
		t.Fatal("Acquire() = false on free lock")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	want := fmt.Sprintf("%d:lock-test", os.Getpid())
	if string(data) != want {
		t.Errorf("lock contents = %q, want %q", data, want)
	}

	if err := Release(path); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present after Release()")
	}

	// Releasing again is a no-op
	if err := Release(path); err != nil {
		t.Errorf("second Release() failed: %v", err)
	}
}

func TestAcquireContended(t *testing.T) {
	path := PathFor(t.TempDir(), "topic-b")

	ok, err := Acquire(path, testOptions())
	if err != nil || !ok {
		t.Fatalf("first Acquire() = (%v, %v)", ok, err)
	}

	// A second acquire against a fresh lock must time out, not error
	start := time.Now()
	ok, err = Acquire(path, testOptions())
	if err != nil {
		t.Fatalf("contended Acquire() errored: %v", err)
	}
	if ok {
		t.Fatal("contended Acquire() = true while lock held")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("contended Acquire() returned after %v, want ~timeout", elapsed)
	}
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	path := PathFor(t.TempDir(), "topic-c")

	if err := os.WriteFile(path, []byte("99999:dead-process"), 0o644); err != nil {
		t.Fatalf("failed to plant lock: %v", err)
	}
	// Age the lock past the TTL
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("failed to age lock: %v", err)
	}

	ok, err := Acquire(path, testOptions())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if !ok {
		t.Fatal("Acquire() = false against stale lock")
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dead-process") {
		t.Error("stale lock contents survived acquisition")
	}
}

func TestAcquireForceBreak(t *testing.T) {
	path := PathFor(t.TempDir(), "topic-d")

	opts := testOptions()
	if ok, _ := Acquire(path, opts); !ok {
		t.Fatal("setup Acquire() failed")
	}

	// Fresh lock, but force break overrides the TTL check
	opts.ForceBreak = true
	ok, err := Acquire(path, opts)
	if err != nil {
		t.Fatalf("forced Acquire() failed: %v", err)
	}
	if !ok {
		t.Error("forced Acquire() = false")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, "topic-e")

	info, err := Inspect(path, time.Hour)
	if err != nil {
		t.Fatalf("Inspect() on missing lock failed: %v", err)
	}
	if info.Exists {
		t.Error("Inspect().Exists = true for missing lock")
	}

	if ok, _ := Acquire(path, testOptions()); !ok {
		t.Fatal("setup Acquire() failed")
	}

	info, err = Inspect(path, time.Hour)
	if err != nil {
		t.Fatalf("Inspect() failed: %v", err)
	}
	if !info.Exists {
		t.Fatal("Inspect().Exists = false for held lock")
	}
	if info.Stale {
		t.Error("Inspect().Stale = true for fresh lock")
	}
	if !strings.Contains(info.Contents, "lock-test") {
		t.Errorf("Inspect().Contents = %q, want holder name", info.Contents)
	}

	// Aged past TTL it reports stale
	old := time.Now().Add(-2 * time.Hour)
	os.Chtimes(path, old, old)
	info, _ = Inspect(path, time.Hour)
	if !info.Stale {
		t.Error("Inspect().Stale = false for aged lock")
	}
}

func TestPathFor(t *testing.T) {
	got := PathFor("/threads", "auth-rework")
	want := filepath.Join("/threads", ".auth-rework.lock")
	if got != want {
		t.Errorf("PathFor() = %q, want %q", got, want)
	}
}
