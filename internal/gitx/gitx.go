// Package gitx wraps the git binary with the operations tether needs:
// repository discovery, branch management, commit/push/pull with failure
// classification, stash snapshots, and conflict inspection.
//
// All operations shell out to git. The package never retries on its own;
// retry policy belongs to the callers (internal/syncer). What it does own
// is classification: push and pull failures are mapped onto sentinel
// errors (ErrPushRejected, ErrNetwork, ErrConflicts) so callers can
// branch with errors.Is instead of scraping output themselves.
package gitx

import (
	"context"
	"time"
)

// Client is the set of git operations the sync and parity layers depend
// on. *Repo is the real implementation; tests substitute fakes.
type Client interface {
	// Root returns the working copy root directory.
	Root() string

	// CurrentBranch returns the checked-out branch name, or "" when
	// HEAD is detached.
	CurrentBranch() (string, error)

	// CommitHash resolves a ref to a full commit hash.
	CommitHash(ref string) (string, error)

	// HasChanges reports whether there are uncommitted changes.
	// If paths are given, only those paths are considered.
	HasChanges(paths ...string) (bool, error)

	// ConflictedFiles returns paths currently in an unmerged state.
	ConflictedFiles() ([]string, error)

	// IsInRebaseOrMerge reports whether a rebase or merge is in flight.
	IsInRebaseOrMerge() bool

	// AddAll stages every change in the working copy.
	AddAll() error

	// AddPath stages a single path.
	AddPath(path string) error

	// Commit records staged changes with the given message.
	Commit(ctx context.Context, message string) error

	// BranchExists reports whether a local branch exists.
	BranchExists(name string) bool

	// RemoteBranchExists reports whether the branch exists on the
	// configured remote.
	RemoteBranchExists(name string) bool

	// Checkout switches the working copy to the named branch.
	Checkout(name string) error

	// CreateBranch creates a branch at the current HEAD.
	CreateBranch(name string) error

	// DeleteBranch deletes a local branch (forced).
	DeleteBranch(name string) error

	// DeleteRemoteBranch deletes the branch on the remote.
	DeleteRemoteBranch(ctx context.Context, name string) error

	// ListBranches returns local branch names.
	ListBranches() ([]string, error)

	// ListAllBranches returns both local and remote-tracking branches.
	ListAllBranches() ([]BranchInfo, error)

	// HasRemote reports whether any remote is configured.
	HasRemote() bool

	// RemoteIsEmpty reports whether the remote has no refs yet
	// (freshly provisioned repository).
	RemoteIsEmpty(ctx context.Context) (bool, error)

	// Fetch updates remote-tracking refs.
	Fetch(ctx context.Context) error

	// Pull fetches and integrates the current branch. Conflicting pulls
	// return ErrConflicts; an empty remote is not an error.
	Pull(ctx context.Context, opts PullOptions) error

	// Push publishes the current branch. Non-fast-forward rejections
	// return ErrPushRejected; connectivity failures return ErrNetwork.
	Push(ctx context.Context) error

	// StashPush saves uncommitted changes, returning false when there
	// was nothing to stash.
	StashPush(message string) (bool, error)

	// StashPop restores the most recent stash entry.
	StashPop() error

	// ShowStage reads a conflicted file's content at a merge stage
	// (1 = common ancestor, 2 = ours, 3 = theirs).
	ShowStage(stage int, path string) ([]byte, error)

	// ShowFileAtRef reads a file's content at a specific ref.
	ShowFileAtRef(ref, path string) ([]byte, error)

	// RebaseContinue resumes a rebase after conflict resolution.
	RebaseContinue(ctx context.Context) error

	// RebaseAbort abandons an in-flight rebase.
	RebaseAbort(ctx context.Context) error

	// MergeBranch merges the named branch into the current branch
	// without committing. Conflicts return ErrConflicts with the merge
	// left in place for resolution.
	MergeBranch(ctx context.Context, name string) error

	// MergeCommit concludes an in-progress merge with a commit.
	MergeCommit(ctx context.Context, message string) error

	// MergeAbort abandons an in-progress merge.
	MergeAbort(ctx context.Context) error
}

// PullOptions configures a pull operation.
type PullOptions struct {
	// Rebase replays local commits on top of the remote branch instead
	// of merging.
	Rebase bool

	// FFOnly refuses pulls that would create a merge commit.
	FFOnly bool
}

// BranchInfo describes a branch known to a repository.
type BranchInfo struct {
	// Name is the short branch name (e.g. "main", "feature-auth").
	Name string

	// Hash is the commit hash the branch points at.
	Hash string

	// IsRemote marks remote-tracking branches.
	IsRemote bool
}

// commandTimeout bounds every git invocation. Pushes and clones go over
// the network and get a longer leash.
const (
	commandTimeout = 30 * time.Second
	networkTimeout = 2 * time.Minute
)
