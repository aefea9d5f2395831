package gitx

import (
	"context"
	"fmt"
	"strings"
)

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(name string) bool {
	_, err := execGit(context.Background(), commandTimeout, r.root,
		"show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// RemoteBranchExists reports whether the branch exists on the remote
// (as a remote-tracking ref; callers fetch first for freshness).
func (r *Repo) RemoteBranchExists(name string) bool {
	_, err := execGit(context.Background(), commandTimeout, r.root,
		"show-ref", "--verify", "--quiet",
		fmt.Sprintf("refs/remotes/%s/%s", r.remote, name))
	return err == nil
}

// Checkout switches the working copy to the named branch.
func (r *Repo) Checkout(name string) error {
	output, err := execGitCombined(context.Background(), commandTimeout, r.root,
		"checkout", name)
	if err != nil {
		if strings.Contains(output, "did not match any") {
			return ErrRefNotFound
		}
		return fmt.Errorf("git checkout failed: %w\n%s", err, output)
	}
	return nil
}

// CreateBranch creates a branch at the current HEAD and checks it out.
func (r *Repo) CreateBranch(name string) error {
	output, err := execGitCombined(context.Background(), commandTimeout, r.root,
		"checkout", "-b", name)
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w\n%s", name, err, output)
	}
	return nil
}

// DeleteBranch deletes a local branch (forced).
func (r *Repo) DeleteBranch(name string) error {
	if !r.BranchExists(name) {
		return ErrRefNotFound
	}

	output, err := execGitCombined(context.Background(), commandTimeout, r.root,
		"branch", "-D", name)
	if err != nil {
		return fmt.Errorf("failed to delete branch %s: %w\n%s", name, err, output)
	}
	return nil
}

// DeleteRemoteBranch deletes the branch on the remote. A no-op when no
// remote is configured.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, name string) error {
	if !r.HasRemote() {
		return nil
	}

	output, err := execGitCombined(ctx, networkTimeout, r.root,
		"push", r.remote, "--delete", name)
	if err != nil {
		// The branch may never have been pushed; that is fine.
		if strings.Contains(output, "remote ref does not exist") {
			return nil
		}
		if netErr := classifyPushFailure(output); netErr != nil {
			return netErr
		}
		return fmt.Errorf("failed to delete remote branch %s: %w\n%s", name, err, output)
	}
	return nil
}

// ListBranches returns local branch names.
func (r *Repo) ListBranches() ([]string, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref failed: %w", err)
	}
	return parseLines(output), nil
}

// ListAllBranches returns both local and remote-tracking branches.
func (r *Repo) ListAllBranches() ([]BranchInfo, error) {
	output, err := execGit(context.Background(), commandTimeout, r.root,
		"for-each-ref", "--format=%(refname) %(objectname)")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref failed: %w", err)
	}

	var branches []BranchInfo
	for _, line := range parseLines(output) {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		refName, hash := parts[0], parts[1]
		switch {
		case strings.HasPrefix(refName, "refs/heads/"):
			branches = append(branches, BranchInfo{
				Name: strings.TrimPrefix(refName, "refs/heads/"),
				Hash: hash,
			})
		case strings.HasPrefix(refName, "refs/remotes/"):
			remotePath := strings.TrimPrefix(refName, "refs/remotes/")
			if idx := strings.Index(remotePath, "/"); idx > 0 {
				name := remotePath[idx+1:]
				if name == "HEAD" {
					continue
				}
				branches = append(branches, BranchInfo{
					Name:     name,
					Hash:     hash,
					IsRemote: true,
				})
			}
		}
	}
	return branches, nil
}
