package gitx

import (
	"context"
	"fmt"
	"strings"
)

// HasRemote reports whether any remote is configured.
func (r *Repo) HasRemote() bool {
	output, err := execGit(context.Background(), commandTimeout, r.root, "remote")
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// RemoteURL returns the fetch URL of the configured remote.
func (r *Repo) RemoteURL() (string, error) {
	if !r.HasRemote() {
		return "", ErrNoRemote
	}

	output, err := execGit(context.Background(), commandTimeout, r.root,
		"remote", "get-url", r.remote)
	if err != nil {
		return "", fmt.Errorf("failed to get remote URL: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// AddRemote configures a remote on the repository.
func (r *Repo) AddRemote(name, url string) error {
	output, err := execGitCombined(context.Background(), commandTimeout, r.root,
		"remote", "add", name, url)
	if err != nil {
		return fmt.Errorf("failed to add remote: %w\n%s", err, output)
	}
	return nil
}

// RemoteIsEmpty reports whether the remote has no refs yet. A freshly
// provisioned repository answers true; unreachable remotes return
// ErrNetwork.
func (r *Repo) RemoteIsEmpty(ctx context.Context) (bool, error) {
	if !r.HasRemote() {
		return false, ErrNoRemote
	}

	output, err := execGitCombined(ctx, networkTimeout, r.root,
		"ls-remote", "--heads", r.remote)
	if err != nil {
		if netErr := classifyPushFailure(output); netErr != nil {
			return false, netErr
		}
		return false, fmt.Errorf("git ls-remote failed: %w\n%s", err, output)
	}
	return strings.TrimSpace(output) == "", nil
}

// RemoteExists probes whether url points at a reachable repository.
// Distinguishes "repository missing" (false, nil) from transport
// failure (false, ErrNetwork) by git's output.
func RemoteExists(ctx context.Context, url string) (bool, error) {
	output, err := execGitCombined(ctx, networkTimeout, "",
		"ls-remote", url, "HEAD")
	if err == nil {
		return true, nil
	}

	lower := strings.ToLower(output)
	for _, p := range networkFailurePatterns {
		if strings.Contains(lower, p) {
			// "could not read from remote repository" is what git
			// prints for missing repos on most hosts as well, so only
			// hard transport errors count as network failures here.
			if p == "could not read from remote repository" ||
				p == "the remote end hung up unexpectedly" {
				return false, nil
			}
			return false, ErrNetwork
		}
	}
	return false, nil
}

// Fetch updates remote-tracking refs. A no-op without a remote.
func (r *Repo) Fetch(ctx context.Context) error {
	if !r.HasRemote() {
		return nil
	}

	output, err := execGitCombined(ctx, networkTimeout, r.root,
		"fetch", r.remote, "--prune")
	if err != nil {
		if netErr := classifyPushFailure(output); netErr != nil {
			return netErr
		}
		return fmt.Errorf("git fetch failed: %w\n%s", err, output)
	}
	return nil
}

// Pull fetches and integrates the current branch. A no-op without a
// remote (local-only mode) and on an empty remote (nothing to merge).
// Conflicting pulls return ErrConflicts with the working copy left in
// the conflicted state.
func (r *Repo) Pull(ctx context.Context, opts PullOptions) error {
	if !r.HasRemote() {
		return nil
	}

	empty, err := r.RemoteIsEmpty(ctx)
	if err != nil {
		return err
	}
	if empty {
		return nil
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if branch == "" {
		return ErrDetached
	}

	// A branch that only exists locally has nothing to pull yet.
	if err := r.Fetch(ctx); err != nil {
		return err
	}
	if !r.RemoteBranchExists(branch) {
		return nil
	}

	args := []string{"pull"}
	if opts.Rebase {
		args = append(args, "--rebase")
	}
	if opts.FFOnly {
		args = append(args, "--ff-only")
	}
	args = append(args, r.remote, branch)

	output, err := execGitCombined(ctx, networkTimeout, r.root, args...)
	if err != nil {
		if looksLikeConflict(output) {
			return ErrConflicts
		}
		if netErr := classifyPushFailure(output); netErr != nil {
			return netErr
		}
		return fmt.Errorf("git pull failed: %w\n%s", err, output)
	}
	return nil
}

// Push publishes the current branch, setting upstream on first push.
// A no-op without a remote. Rejections and transport failures come back
// as ErrPushRejected and ErrNetwork respectively.
func (r *Repo) Push(ctx context.Context) error {
	if !r.HasRemote() {
		return nil
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if branch == "" {
		return ErrDetached
	}

	output, err := execGitCombined(ctx, networkTimeout, r.root,
		"push", "-u", r.remote, branch)
	if err != nil {
		if classified := classifyPushFailure(output); classified != nil {
			return classified
		}
		return fmt.Errorf("git push failed: %w\n%s", err, output)
	}
	return nil
}
