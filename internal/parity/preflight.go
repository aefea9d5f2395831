package parity

import (
	"fmt"
	"path/filepath"
)

// PreflightResult is the advisory input to remediation: computed fresh
// on every coordinator invocation, never persisted. Two consecutive
// runs with no intervening mutation produce identical results.
type PreflightResult struct {
	// CodeClean and ThreadsClean report working tree cleanliness.
	CodeClean    bool
	ThreadsClean bool

	// CodeBranch and ThreadsBranch are the current branch names.
	CodeBranch    string
	ThreadsBranch string

	// BranchMatch is true when both repositories are on the same
	// branch name.
	BranchMatch bool

	// Protected is true when either branch matches a protected
	// pattern; destructive auto-remediation is refused without an
	// explicit override.
	Protected bool

	// Issues lists actionable findings in operator-readable form.
	Issues []string
}

// RunPreflight validates both repositories before remediation.
func (c *Coordinator) RunPreflight() (*PreflightResult, error) {
	pf := &PreflightResult{}

	codeBranch, err := c.code.Git().CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("code repo: %w", err)
	}
	threadsBranch, err := c.threads.Git().CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("threads repo: %w", err)
	}
	pf.CodeBranch = codeBranch
	pf.ThreadsBranch = threadsBranch
	pf.BranchMatch = codeBranch != "" && codeBranch == threadsBranch

	codeDirty, err := c.code.Git().HasChanges()
	if err != nil {
		return nil, fmt.Errorf("code repo: %w", err)
	}
	threadsDirty, err := c.threads.Git().HasChanges()
	if err != nil {
		return nil, fmt.Errorf("threads repo: %w", err)
	}
	pf.CodeClean = !codeDirty
	pf.ThreadsClean = !threadsDirty

	pf.Protected = c.isProtected(codeBranch) || c.isProtected(threadsBranch)

	if !pf.BranchMatch {
		pf.Issues = append(pf.Issues,
			fmt.Sprintf("branch mismatch: code on %q, threads on %q", codeBranch, threadsBranch))
	}
	if codeDirty {
		pf.Issues = append(pf.Issues, "code repository has uncommitted changes")
	}
	if threadsDirty {
		pf.Issues = append(pf.Issues, "threads repository has uncommitted changes")
	}
	if pf.Protected {
		pf.Issues = append(pf.Issues, "a protected branch is checked out; destructive remediation disabled")
	}
	if c.threads.Git().IsInRebaseOrMerge() {
		pf.Issues = append(pf.Issues, "threads repository has a rebase or merge in progress")
	}

	return pf, nil
}

// isProtected matches a branch name against the configured protected
// patterns (shell-style globs).
func (c *Coordinator) isProtected(branch string) bool {
	if branch == "" {
		return false
	}
	for _, pattern := range c.cfg.ProtectedBranches {
		if ok, _ := filepath.Match(pattern, branch); ok {
			return true
		}
	}
	return false
}
