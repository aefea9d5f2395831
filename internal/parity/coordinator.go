package parity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/tether/internal/gitx"
	"github.com/mschirtzinger/tether/internal/lock"
	"github.com/mschirtzinger/tether/internal/syncer"
	"github.com/mschirtzinger/tether/internal/thread"
)

// ErrProtectedBranch is returned when destructive remediation targets
// a protected branch without an explicit override.
var ErrProtectedBranch = errors.New("refusing destructive operation on protected branch")

// Config tunes coordinator behavior. Passed in explicitly; the
// coordinator keeps no process-global state.
type Config struct {
	// TrunkBranch is the shared trunk, default "main".
	TrunkBranch string

	// ProtectedBranches are branch names on which destructive
	// auto-remediation is refused without AllowProtected. Defaults to
	// the trunk plus "master".
	ProtectedBranches []string

	// AllowProtected overrides the protected-branch guard.
	AllowProtected bool

	// Lock tunes per-topic lock acquisition.
	Lock lock.Options

	// StateDir holds per-topic parity state files. Defaults to
	// tether-state inside the threads repository's .git directory so
	// the working tree stays clean.
	StateDir string
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults(threadsPath string) {
	if c.TrunkBranch == "" {
		c.TrunkBranch = "main"
	}
	if len(c.ProtectedBranches) == 0 {
		c.ProtectedBranches = []string{c.TrunkBranch, "master"}
	}
	if c.Lock.Timeout == 0 {
		c.Lock = lock.DefaultOptions()
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(threadsPath, ".git", "tether-state")
	}
}

// Coordinator orchestrates sync operations across a code/threads
// repository pair. One coordinator operation runs per topic at a time
// across all processes, enforced by the topic's advisory lock.
type Coordinator struct {
	code    *syncer.Manager
	threads *syncer.Manager
	cfg     Config
	store   *Store
	logger  *log.Logger
}

// New creates a coordinator over an initialized repository pair.
//
// If logger is nil, a default logger writing to stderr is used.
func New(code, threads *syncer.Manager, cfg Config, logger *log.Logger) *Coordinator {
	cfg.applyDefaults(threads.Path())
	if logger == nil {
		logger = log.New(os.Stderr, "[parity] ", log.LstdFlags)
	}
	if err := ensureLockExclusion(threads.Path()); err != nil {
		logger.Printf("WARNING: failed to exclude lock files from git status: %v", err)
	}
	return &Coordinator{
		code:    code,
		threads: threads,
		cfg:     cfg,
		store:   NewStore(cfg.StateDir),
		logger:  logger,
	}
}

// ensureLockExclusion keeps topic lock files out of git status and sync
// commits. They live inside the threads working tree but are transient
// process state, excluded via .git/info/exclude so no tracked
// .gitignore change is needed.
func ensureLockExclusion(threadsPath string) error {
	const pattern = ".*.lock"

	infoDir := filepath.Join(threadsPath, ".git", "info")
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return err
	}
	excludePath := filepath.Join(infoDir, "exclude")

	data, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}

	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(pattern + "\n")
	return err
}

// Store exposes the parity state store for the health reporter.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Result is the outcome of a coordinator operation, reported rather
// than raised for all handled conditions.
type Result struct {
	Topic   string
	Status  Status
	Message string
}

// LockPath returns the topic's lock file location inside the threads
// directory.
func (c *Coordinator) LockPath(topic string) string {
	return lock.PathFor(c.threads.Path(), thread.SanitizeTopic(topic))
}

// threadRelPath is the thread document location for a topic, relative
// to the threads repository root.
func threadRelPath(topic string) string {
	return filepath.Join("threads", thread.SanitizeTopic(topic)+".md")
}

// Sync runs the full per-topic synchronization sequence: lock,
// preflight, remediation (stash, pull, conflict resolution, branch
// re-pairing), commit-and-push, persist parity state, unlock.
func (c *Coordinator) Sync(ctx context.Context, topic string) (*Result, error) {
	sanitized := thread.SanitizeTopic(topic)
	if sanitized == "" {
		return nil, fmt.Errorf("%w: topic %q sanitizes to nothing", thread.ErrInvalidName, topic)
	}

	lockPath := c.LockPath(topic)
	acquired, err := lock.Acquire(lockPath, c.cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !acquired {
		return &Result{
			Topic:   topic,
			Status:  StatusFailed,
			Message: fmt.Sprintf("topic %s is locked by another process: %v", topic, lock.ErrTimeout),
		}, nil
	}
	defer func() {
		if err := lock.Release(lockPath); err != nil {
			c.logger.Printf("WARNING: failed to release lock %s: %v", lockPath, err)
		}
	}()

	result := c.syncLocked(ctx, topic)

	state := &State{
		Status:    result.Status,
		UpdatedAt: time.Now().UTC(),
		LastError: c.threads.LastError(),
	}
	if b, err := c.code.Git().CurrentBranch(); err == nil {
		state.CodeBranch = b
	}
	if b, err := c.threads.Git().CurrentBranch(); err == nil {
		state.ThreadsBranch = b
	}
	if result.Status == StatusSynced {
		state.LastError = ""
		if hash, err := c.threads.Git().CommitHash("HEAD"); err == nil {
			state.LastSyncedCommit = hash
		}
	} else if result.Message != "" && state.LastError == "" {
		state.LastError = result.Message
	}
	if err := c.store.Save(topic, state); err != nil {
		c.logger.Printf("WARNING: failed to persist parity state for %s: %v", topic, err)
	}

	return result, nil
}

// syncLocked is the remediation sequence, entered with the topic lock
// held.
func (c *Coordinator) syncLocked(ctx context.Context, topic string) *Result {
	pf, err := c.RunPreflight()
	if err != nil {
		return &Result{Topic: topic, Status: StatusFailed, Message: err.Error()}
	}

	// Preserve uncommitted threads work across the pull. Restoration
	// runs even when remediation fails partway.
	var stashed bool
	if !pf.ThreadsClean {
		stashed, err = c.threads.Git().StashPush("tether remediation " + topic)
		if err != nil {
			return &Result{Topic: topic, Status: StatusFailed, Message: err.Error()}
		}
	}
	defer func() {
		if !stashed {
			return
		}
		if err := c.threads.Git().StashPop(); err != nil {
			c.logger.Printf("WARNING: stash restore failed, uncommitted work kept in stash: %v", err)
		}
	}()

	// Keep the code repository current; failures here are advisory
	// since tether never commits to it.
	if !c.code.Pull(ctx) {
		c.logger.Printf("WARNING: code repo pull failed: %s", c.code.LastError())
	}

	if err := c.threads.PullRebase(ctx); err != nil {
		if !errors.Is(err, gitx.ErrConflicts) {
			return &Result{Topic: topic, Status: StatusFailed, Message: err.Error()}
		}
		report, resolved := c.resolveConflicts(ctx)
		if !resolved {
			// Leave the operator a clean tree rather than a stuck
			// rebase.
			if abortErr := c.threads.Git().RebaseAbort(ctx); abortErr != nil {
				c.logger.Printf("WARNING: rebase abort failed: %v", abortErr)
			}
			return &Result{
				Topic:  topic,
				Status: StatusConflict,
				Message: fmt.Sprintf("conflicts outside thread documents require manual resolution: %v",
					report.Paths),
			}
		}
	}

	// Branch re-pairing: bring threads onto the code repo's branch.
	if !pf.BranchMatch {
		if err := thread.ValidateBranchName(pf.CodeBranch); err != nil {
			return &Result{Topic: topic, Status: StatusFailed, Message: err.Error()}
		}
		if pf.Protected && !c.cfg.AllowProtected {
			return &Result{
				Topic:   topic,
				Status:  StatusDrift,
				Message: fmt.Sprintf("%v: %s", ErrProtectedBranch, pf.ThreadsBranch),
			}
		}
		if err := c.threads.EnsureBranch(ctx, pf.CodeBranch); err != nil {
			return &Result{Topic: topic, Status: StatusDrift, Message: err.Error()}
		}
	}

	// Stash back before committing so local edits ride along. A failed
	// restore keeps the stash entry, leaving uncommitted work behind;
	// that observation persists as a dirty parity state.
	if stashed {
		stashed = false
		if err := c.threads.Git().StashPop(); err != nil {
			return &Result{
				Topic:   topic,
				Status:  StatusDirty,
				Message: fmt.Sprintf("stash restore failed, uncommitted work kept in stash: %v", err),
			}
		}
	}

	message := fmt.Sprintf("tether: sync %s", thread.SanitizeTopic(topic))
	if !c.threads.CommitAndPush(ctx, message) {
		return &Result{Topic: topic, Status: StatusFailed, Message: c.threads.LastError()}
	}

	return &Result{Topic: topic, Status: StatusSynced, Message: "synchronized"}
}

// resolveConflicts attempts automatic resolution of a conflicted
// rebase. Only conflicts confined to recognized document shapes are
// eligible; anything else returns resolved=false with the report.
func (c *Coordinator) resolveConflicts(ctx context.Context) (thread.ConflictReport, bool) {
	git := c.threads.Git()

	for {
		paths, err := git.ConflictedFiles()
		if err != nil {
			c.logger.Printf("WARNING: failed to list conflicts: %v", err)
			return thread.ConflictReport{HasConflicts: true}, false
		}
		if len(paths) == 0 {
			// Rebase may have further commits to replay.
			if err := git.RebaseContinue(ctx); err != nil {
				if errors.Is(err, gitx.ErrConflicts) {
					continue
				}
				c.logger.Printf("WARNING: rebase continue failed: %v", err)
				return thread.ConflictReport{HasConflicts: true}, false
			}
			return thread.ConflictReport{}, true
		}

		report := thread.Classify(paths)
		if !report.ThreadOnly {
			return report, false
		}

		for _, path := range paths {
			if err := c.resolvePath(git, path); err != nil {
				c.logger.Printf("WARNING: failed to auto-resolve %s: %v", path, err)
				return report, false
			}
		}

		if err := git.RebaseContinue(ctx); err != nil {
			if errors.Is(err, gitx.ErrConflicts) {
				continue
			}
			c.logger.Printf("WARNING: rebase continue failed: %v", err)
			return report, false
		}
		return report, true
	}
}

// resolvePath merges one conflicted document and stages the result.
// During a rebase, stage 2 holds the remote (upstream) side and stage 3
// the local commit being replayed.
func (c *Coordinator) resolvePath(git gitx.Client, path string) error {
	mergeFn := thread.MergeFunc(path)
	if mergeFn == nil {
		return fmt.Errorf("no merge strategy for %s", path)
	}

	// Stage 1 is absent for add/add conflicts; that degrades gracefully.
	base, _ := git.ShowStage(1, path)
	remote, err := git.ShowStage(2, path)
	if err != nil {
		return err
	}
	local, err := git.ShowStage(3, path)
	if err != nil {
		return err
	}

	merged, err := mergeFn(base, local, remote)
	if err != nil {
		return err
	}

	if err := writeWorkingFile(git.Root(), path, merged); err != nil {
		return err
	}
	return git.AddPath(path)
}

// writeWorkingFile writes content to a repository-relative path,
// creating parent directories as needed.
func writeWorkingFile(root, relPath string, content []byte) error {
	fullPath := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}
