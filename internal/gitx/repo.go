package gitx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Repo is the git-backed implementation of Client for one working copy.
type Repo struct {
	// root is the working copy root directory
	root string

	// gitDir is the .git directory path
	gitDir string

	// remote is the remote name used for fetch/pull/push, normally
	// "origin"
	remote string
}

// Open attaches to an existing working copy. The path may be anywhere
// inside the repository. Returns ErrNotARepo if no repository is found.
func Open(path string) (*Repo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	output, err := execGit(context.Background(), commandTimeout, absPath,
		"rev-parse", "--git-dir", "--show-toplevel")
	if err != nil {
		return nil, ErrNotARepo
	}

	lines := parseLines(output)
	if len(lines) < 2 {
		return nil, fmt.Errorf("unexpected rev-parse output: got %d lines, expected 2", len(lines))
	}

	gitDir := lines[0]
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(absPath, gitDir)
	}

	return &Repo{
		root:   normalizePath(lines[1]),
		gitDir: gitDir,
		remote: "origin",
	}, nil
}

// Init creates a fresh repository at path, creating the directory if
// needed.
func Init(path string) (*Repo, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	if _, err := execGit(context.Background(), commandTimeout, path, "init"); err != nil {
		return nil, err
	}

	return Open(path)
}

// Clone clones url into path and returns the resulting repository.
func Clone(ctx context.Context, url, path string) (*Repo, error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	output, err := execGitCombined(ctx, networkTimeout, parent, "clone", url, path)
	if err != nil {
		if netErr := classifyPushFailure(output); netErr != nil {
			return nil, fmt.Errorf("clone %s: %w", url, netErr)
		}
		return nil, fmt.Errorf("git clone failed: %w\n%s", err, output)
	}

	return Open(path)
}

// normalizePath resolves symlinks so paths compare cleanly on macOS
// (/var vs /private/var).
func normalizePath(path string) string {
	path = filepath.FromSlash(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path
}

// Root returns the working copy root directory.
func (r *Repo) Root() string {
	return r.root
}

// SetRemoteName overrides the remote used for network operations.
func (r *Repo) SetRemoteName(name string) {
	r.remote = name
}

// CurrentBranch returns the checked-out branch name, or "" in detached
// HEAD state.
func (r *Repo) CurrentBranch() (string, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"symbolic-ref", "--short", "HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "not a symbolic ref") {
			return "", nil
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// CommitHash resolves a ref to a full commit hash.
func (r *Repo) CommitHash(ref string) (string, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"rev-parse", "--verify", ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve ref %s: %w", ref, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// HasChanges reports whether there are uncommitted changes. If paths
// are given, only those paths are considered.
func (r *Repo) HasChanges(paths ...string) (bool, error) {
	args := []string{"status", "--porcelain"}
	args = append(args, paths...)

	output, err := execGit(context.Background(), commandTimeout, r.root, args...)
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// unmergedCodes are the two-letter porcelain codes git uses for paths
// in a conflicted state.
var unmergedCodes = map[string]bool{
	"DD": true, "AU": true, "UD": true,
	"UA": true, "DU": true, "AA": true, "UU": true,
}

// ConflictedFiles returns paths currently in an unmerged state.
func (r *Repo) ConflictedFiles() ([]string, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	var conflicts []string
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}
		if unmergedCodes[line[:2]] {
			conflicts = append(conflicts, strings.TrimSpace(line[3:]))
		}
	}
	return conflicts, nil
}

// IsInRebaseOrMerge reports whether a rebase or merge is in flight.
func (r *Repo) IsInRebaseOrMerge() bool {
	for _, marker := range []string{"rebase-merge", "rebase-apply", "MERGE_HEAD"} {
		if _, err := os.Stat(filepath.Join(r.gitDir, marker)); err == nil {
			return true
		}
	}
	return false
}

// AddAll stages every change in the working copy.
func (r *Repo) AddAll() error {
	if _, err := execGit(context.Background(), commandTimeout, r.root, "add", "-A"); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// AddPath stages a single path.
func (r *Repo) AddPath(path string) error {
	if _, err := execGit(context.Background(), commandTimeout, r.root, "add", "--", path); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Commit records staged changes with the given message.
func (r *Repo) Commit(ctx context.Context, message string) error {
	if message == "" {
		return fmt.Errorf("commit message is required")
	}

	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"commit", "-m", message, "--no-gpg-sign")
	if err != nil {
		return fmt.Errorf("git commit failed: %w\n%s", err, output)
	}
	return nil
}

// ShowStage reads a conflicted file's content at a merge stage
// (1 = common ancestor, 2 = ours, 3 = theirs).
func (r *Repo) ShowStage(stage int, path string) ([]byte, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"show", fmt.Sprintf(":%d:%s", stage, path))
	if err != nil {
		return nil, fmt.Errorf("failed to read stage %d of %s: %w", stage, path, err)
	}
	return output, nil
}

// ShowFileAtRef reads a file's content at a specific ref.
func (r *Repo) ShowFileAtRef(ref, path string) ([]byte, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"show", ref+":"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", path, ref, err)
	}
	return output, nil
}
