package gitx

import (
	"context"
	"fmt"
	"strings"
)

// StashPush saves uncommitted changes, including untracked files.
// Returns false when the working copy was already clean.
func (r *Repo) StashPush(message string) (bool, error) {
	args := []string{"stash", "push", "--include-untracked"}
	if message != "" {
		args = append(args, "-m", message)
	}

	output, err := execGitCombined(context.Background(), commandTimeout, r.root, args...)
	if err != nil {
		return false, fmt.Errorf("git stash push failed: %w\n%s", err, output)
	}

	if strings.Contains(output, "No local changes to save") {
		return false, nil
	}
	return true, nil
}

// StashPop restores the most recent stash entry. Conflicting
// restoration returns ErrConflicts with the stash entry retained, so
// the uncommitted work is never lost.
func (r *Repo) StashPop() error {
	output, err := execGitCombined(context.Background(), commandTimeout, r.root,
		"stash", "pop")
	if err != nil {
		if looksLikeConflict(output) {
			return ErrConflicts
		}
		return fmt.Errorf("git stash pop failed: %w\n%s", err, output)
	}
	return nil
}

// RebaseContinue resumes a rebase after conflict resolution. Git wants
// an editor for the replayed commit message; suppress it.
func (r *Repo) RebaseContinue(ctx context.Context) error {
	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"-c", "core.editor=true", "rebase", "--continue")
	if err != nil {
		if looksLikeConflict(output) {
			return ErrConflicts
		}
		return fmt.Errorf("git rebase --continue failed: %w\n%s", err, output)
	}
	return nil
}

// RebaseAbort abandons an in-flight rebase.
func (r *Repo) RebaseAbort(ctx context.Context) error {
	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"rebase", "--abort")
	if err != nil {
		return fmt.Errorf("git rebase --abort failed: %w\n%s", err, output)
	}
	return nil
}

// MergeBranch merges the named branch into the current branch without
// committing. Conflicts return ErrConflicts with the merge left in
// place for resolution.
func (r *Repo) MergeBranch(ctx context.Context, name string) error {
	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"merge", "--no-commit", "--no-ff", name)
	if err != nil {
		if looksLikeConflict(output) {
			return ErrConflicts
		}
		return fmt.Errorf("git merge failed: %w\n%s", err, output)
	}
	return nil
}

// MergeCommit concludes an in-progress merge with a commit.
func (r *Repo) MergeCommit(ctx context.Context, message string) error {
	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"commit", "-m", message, "--no-gpg-sign")
	if err != nil {
		return fmt.Errorf("git commit failed: %w\n%s", err, output)
	}
	return nil
}

// MergeAbort abandons an in-progress merge.
func (r *Repo) MergeAbort(ctx context.Context) error {
	output, err := execGitCombined(ctx, commandTimeout, r.root,
		"merge", "--abort")
	if err != nil {
		return fmt.Errorf("git merge --abort failed: %w\n%s", err, output)
	}
	return nil
}
