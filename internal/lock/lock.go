// Package lock implements cooperative file-based mutual exclusion for
// per-topic sync operations.
//
// A lock is a plain file named .{topic}.lock inside the threads
// directory, holding "{pid}:{process-name}". The file's modification
// time doubles as the acquisition clock: a lock older than its TTL is
// presumed abandoned by a dead holder and may be broken by the next
// acquirer. Holder identity is diagnostic, not authoritative; Release
// deletes unconditionally, favoring availability over strict ownership.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTimeout is returned by callers that need a typed failure; Acquire
// itself reports timeout as (false, nil).
var ErrTimeout = errors.New("lock not acquired within timeout")

// Options tunes acquisition behavior.
type Options struct {
	// Timeout bounds how long Acquire waits for a held lock.
	Timeout time.Duration

	// TTL is the age past which a lock counts as stale and may be
	// broken without force.
	TTL time.Duration

	// RetryDelay is the sleep between acquisition attempts.
	RetryDelay time.Duration

	// ForceBreak deletes any existing lock regardless of age.
	ForceBreak bool

	// HolderName identifies the acquiring process in the lock file.
	// Defaults to the executable name.
	HolderName string
}

// DefaultOptions match the tunable defaults: 30s wait, 10m staleness,
// 100ms between attempts.
func DefaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		TTL:        10 * time.Minute,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Info is a side-effect-free snapshot of a lock file, used by operator
// tooling (tether unlock) to report without mutating.
type Info struct {
	// Path is the lock file location.
	Path string

	// Exists reports whether the lock file is present.
	Exists bool

	// Contents is the raw "{pid}:{name}" holder identity.
	Contents string

	// Age is time since the file's modification time.
	Age time.Duration

	// Stale is true when Age meets or exceeds the TTL used to inspect.
	Stale bool
}

// PathFor returns the lock file path for a topic inside dir.
func PathFor(dir, topic string) string {
	return filepath.Join(dir, "."+topic+".lock")
}

// Acquire attempts to take the lock at path. It returns (true, nil) on
// success, (false, nil) when the lock stayed held past opts.Timeout,
// and (false, err) only for filesystem failures.
//
// An existing lock is broken when opts.ForceBreak is set or its age
// meets opts.TTL. Otherwise Acquire sleeps opts.RetryDelay between
// attempts until the timeout elapses.
func Acquire(path string, opts Options) (bool, error) {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}

	holder := opts.HolderName
	if holder == "" {
		holder = processName()
	}
	contents := fmt.Sprintf("%d:%s", os.Getpid(), holder)

	deadline := time.Now().Add(opts.Timeout)
	for {
		ok, err := tryCreate(path, contents)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		// Lock exists. Break it if forced or stale, then retry
		// immediately.
		if opts.ForceBreak || isStale(path, opts.TTL) {
			if err := remove(path); err != nil {
				return false, err
			}
			continue
		}

		if !time.Now().Add(opts.RetryDelay).Before(deadline) {
			return false, nil
		}
		time.Sleep(opts.RetryDelay)
	}
}

// Release deletes the lock file. Idempotent: releasing an absent lock
// is a no-op.
func Release(path string) error {
	return remove(path)
}

// Inspect reads the lock state without mutating it. ttl determines the
// Stale flag; a missing file yields Exists=false and zero values.
func Inspect(path string, ttl time.Duration) (Info, error) {
	info := Info{Path: path}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, fmt.Errorf("failed to stat lock: %w", err)
	}

	info.Exists = true
	info.Age = time.Since(fi.ModTime())
	info.Stale = ttl > 0 && info.Age >= ttl

	data, err := os.ReadFile(path)
	if err != nil {
		// The holder may have released between stat and read.
		if os.IsNotExist(err) {
			return Info{Path: path}, nil
		}
		return info, fmt.Errorf("failed to read lock: %w", err)
	}
	info.Contents = strings.TrimSpace(string(data))

	return info, nil
}

// tryCreate attempts atomic exclusive creation of the lock file.
func tryCreate(path, contents string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock: %w", err)
	}

	_, werr := f.WriteString(contents)
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("failed to write lock: %w", werr)
	}
	if cerr != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("failed to close lock: %w", cerr)
	}
	return true, nil
}

// isStale reports whether the lock at path has outlived ttl. A lock
// that vanished counts as stale so the caller retries creation.
func isStale(path string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	fi, err := os.Stat(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	return time.Since(fi.ModTime()) >= ttl
}

// remove deletes the lock file, tolerating absence.
func remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock: %w", err)
	}
	return nil
}

// processName returns the executable base name for the holder field.
func processName() string {
	exe, err := os.Executable()
	if err != nil {
		return "unknown"
	}
	return filepath.Base(exe)
}
