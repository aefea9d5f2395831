// Package syncer wraps one repository working copy's lifecycle:
// clone-or-init, auto-provisioning of missing remotes, pull,
// commit-and-push with bounded retry, and branch management.
//
// Expected contention (push rejections, nothing to pull) is handled
// internally and reported as boolean outcomes plus a recorded error
// string; callers branch on these routinely. Operator misconfiguration
// (provisioning failure, unreadable repository) comes back as typed
// errors.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/tether/internal/gitx"
)

// ErrProvisionFailed is returned when the external provisioning command
// exits non-zero or the remote is still missing afterwards. Fatal:
// indicates operator misconfiguration, never retried.
var ErrProvisionFailed = errors.New("remote provisioning failed")

// Config describes one managed working copy. Constructed explicitly
// and passed in; the manager keeps no process-global state.
type Config struct {
	// RemoteURL is the remote repository URL. Ignored when
	// RemoteAllowed is false.
	RemoteURL string

	// Path is the local working copy location.
	Path string

	// RemoteName is the git remote name, default "origin".
	RemoteName string

	// RemoteAllowed gates all network operations. When false the
	// working copy is initialized standalone and every push/pull is a
	// successful no-op (testing, air-gapped operation).
	RemoteAllowed bool

	// AutoProvision enables running ProvisionCmd when the remote does
	// not exist yet.
	AutoProvision bool

	// ProvisionCmd is a shell command template with a {url}
	// placeholder, run when AutoProvision is set and the remote is
	// missing. Non-zero exit is fatal.
	ProvisionCmd string

	// MaxPushRetries bounds pull-rebase-push cycles after a rejected
	// push. Default 3.
	MaxPushRetries int
}

// Manager runs sync operations against one working copy.
type Manager struct {
	cfg     Config
	git     gitx.Client
	logger  *log.Logger
	lastErr string
}

// New creates a Manager. Call Init before any other operation.
//
// If logger is nil, a default logger writing to stderr is used.
func New(cfg Config, logger *log.Logger) *Manager {
	if cfg.RemoteName == "" {
		cfg.RemoteName = "origin"
	}
	if cfg.MaxPushRetries <= 0 {
		cfg.MaxPushRetries = 3
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Manager{cfg: cfg, logger: logger}
}

// NewWithClient creates a Manager bound to an existing client. Used by
// the coordinator for already-initialized repositories and by tests
// with fakes.
func NewWithClient(cfg Config, client gitx.Client, logger *log.Logger) *Manager {
	m := New(cfg, logger)
	m.git = client
	return m
}

// Git exposes the underlying client for read-only queries by the
// parity layer.
func (m *Manager) Git() gitx.Client {
	return m.git
}

// Path returns the working copy location.
func (m *Manager) Path() string {
	return m.cfg.Path
}

// LastError returns the error text recorded by the most recent failed
// operation, empty after a success.
func (m *Manager) LastError() string {
	return m.lastErr
}

// Init makes the working copy usable: attaches to an existing clone,
// clones from the remote (provisioning it first when enabled and
// missing), or initializes a standalone repository in local-only mode.
func (m *Manager) Init(ctx context.Context) error {
	if m.git != nil {
		return nil
	}

	// Existing working copy wins regardless of mode.
	if repo, err := gitx.Open(m.cfg.Path); err == nil {
		repo.SetRemoteName(m.cfg.RemoteName)
		m.git = repo
		return nil
	}

	if !m.cfg.RemoteAllowed {
		repo, err := gitx.Init(m.cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize local repository: %w", err)
		}
		m.git = repo
		m.logger.Printf("Initialized local-only repository at %s", m.cfg.Path)
		return nil
	}

	exists, err := gitx.RemoteExists(ctx, m.cfg.RemoteURL)
	if err != nil {
		return fmt.Errorf("failed to probe remote %s: %w", m.cfg.RemoteURL, err)
	}

	if !exists {
		if !m.cfg.AutoProvision {
			return fmt.Errorf("remote %s does not exist and auto-provisioning is disabled", m.cfg.RemoteURL)
		}
		if err := m.provision(ctx); err != nil {
			return err
		}
	}

	repo, err := gitx.Clone(ctx, m.cfg.RemoteURL, m.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", m.cfg.RemoteURL, err)
	}
	repo.SetRemoteName(m.cfg.RemoteName)
	m.git = repo
	m.logger.Printf("Cloned %s into %s", m.cfg.RemoteURL, m.cfg.Path)
	return nil
}

// provision runs the operator-configured command to create the remote.
func (m *Manager) provision(ctx context.Context) error {
	if strings.TrimSpace(m.cfg.ProvisionCmd) == "" {
		return fmt.Errorf("%w: no provisioning command configured", ErrProvisionFailed)
	}

	cmdline := strings.ReplaceAll(m.cfg.ProvisionCmd, "{url}", m.cfg.RemoteURL)
	m.logger.Printf("Provisioning remote: %s", cmdline)

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrProvisionFailed, err, strings.TrimSpace(string(output)))
	}

	exists, err := gitx.RemoteExists(ctx, m.cfg.RemoteURL)
	if err != nil {
		return fmt.Errorf("%w: remote unreachable after provisioning: %v", ErrProvisionFailed, err)
	}
	if !exists {
		return fmt.Errorf("%w: remote still missing after provisioning command", ErrProvisionFailed)
	}
	return nil
}

// Pull fetches and fast-forwards the current branch. An empty or
// absent remote is success with nothing to merge. Returns false with
// the error recorded on failure; conflicts surface as false with
// gitx.ErrConflicts recorded.
func (m *Manager) Pull(ctx context.Context) bool {
	if !m.cfg.RemoteAllowed {
		return true
	}

	if err := m.git.Pull(ctx, gitx.PullOptions{FFOnly: true}); err != nil {
		m.record(err)
		return false
	}
	m.clearError()
	return true
}

// PullRebase replays local commits on top of the remote branch.
// Conflicts leave the working copy mid-rebase for the caller to
// resolve or abort.
func (m *Manager) PullRebase(ctx context.Context) error {
	if !m.cfg.RemoteAllowed {
		return nil
	}
	return m.git.Pull(ctx, gitx.PullOptions{Rebase: true})
}

// CommitAndPush stages everything, commits, and pushes. Push outcomes
// are classified: a rejected push (remote advanced) triggers a
// pull-rebase and retry up to the configured bound; a network failure
// aborts immediately without retrying. Returns true on success, false
// with the error recorded otherwise.
func (m *Manager) CommitAndPush(ctx context.Context, message string) bool {
	dirty, err := m.git.HasChanges()
	if err != nil {
		m.record(err)
		return false
	}

	if dirty {
		if err := m.git.AddAll(); err != nil {
			m.record(err)
			return false
		}
		if err := m.git.Commit(ctx, message); err != nil {
			m.record(err)
			return false
		}
	}

	if !m.cfg.RemoteAllowed {
		m.clearError()
		return true
	}

	return m.pushWithRetry(ctx)
}

// pushWithRetry pushes, resolving rejections with pull-rebase cycles
// up to MaxPushRetries total attempts.
func (m *Manager) pushWithRetry(ctx context.Context) bool {
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxPushRetries; attempt++ {
		err := m.git.Push(ctx)
		if err == nil {
			m.clearError()
			return true
		}
		lastErr = err

		if errors.Is(err, gitx.ErrNetwork) {
			// Retrying an unreachable remote wastes time and can mask
			// misconfiguration.
			m.record(err)
			return false
		}
		if !errors.Is(err, gitx.ErrPushRejected) {
			m.record(err)
			return false
		}

		m.logger.Printf("Push rejected (attempt %d/%d), rebasing onto remote", attempt, m.cfg.MaxPushRetries)
		if rbErr := m.git.Pull(ctx, gitx.PullOptions{Rebase: true}); rbErr != nil {
			m.record(rbErr)
			return false
		}
	}

	m.record(fmt.Errorf("push retries exhausted: %w", lastErr))
	return false
}

// PushPending pushes commits made outside CommitAndPush. A guaranteed
// no-op success in local-only mode.
func (m *Manager) PushPending(ctx context.Context) bool {
	if !m.cfg.RemoteAllowed {
		return true
	}
	return m.pushWithRetry(ctx)
}

// EnsureBranch puts the working copy on the named branch: checking it
// out if it exists locally or on the remote, creating it from the
// current HEAD otherwise.
func (m *Manager) EnsureBranch(ctx context.Context, name string) error {
	current, err := m.git.CurrentBranch()
	if err != nil {
		return err
	}
	if current == name {
		return nil
	}

	if m.git.BranchExists(name) {
		return m.git.Checkout(name)
	}

	if m.cfg.RemoteAllowed && m.git.HasRemote() {
		if err := m.git.Fetch(ctx); err != nil {
			m.logger.Printf("WARNING: fetch before branch lookup failed: %v", err)
		}
		if m.git.RemoteBranchExists(name) {
			// Checkout by name DWIMs a local tracking branch.
			return m.git.Checkout(name)
		}
	}

	return m.git.CreateBranch(name)
}

// record stores the error text for callers that report rather than
// propagate.
func (m *Manager) record(err error) {
	m.lastErr = err.Error()
	m.logger.Printf("WARNING: %v", err)
}

func (m *Manager) clearError() {
	m.lastErr = ""
}

// DefaultPath derives a working copy path for a repo URL under baseDir.
func DefaultPath(baseDir, url string) string {
	name := strings.TrimSuffix(filepath.Base(url), ".git")
	if name == "" || name == "." {
		name = fmt.Sprintf("repo-%d", time.Now().Unix())
	}
	return filepath.Join(baseDir, name)
}
