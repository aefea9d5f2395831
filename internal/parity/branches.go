package parity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mschirtzinger/tether/internal/gitx"
	"github.com/mschirtzinger/tether/internal/thread"
)

// MismatchKind classifies a pairing discrepancy.
type MismatchKind string

const (
	// MismatchBranchName means the two repositories are on different
	// branch names.
	MismatchBranchName MismatchKind = "branch_name_mismatch"

	// MismatchRemote means the repositories use different remote
	// names.
	MismatchRemote MismatchKind = "remote_mismatch"
)

// Mismatch is one typed pairing discrepancy.
type Mismatch struct {
	Kind    MismatchKind
	Code    string
	Threads string
}

// PairingResult reports whether the repository pair is validly paired.
type PairingResult struct {
	Valid      bool
	Mismatches []Mismatch
}

// ValidateBranchPairing compares the current branch and remote of both
// repositories. In strict mode only exact equality passes; otherwise
// names that are equivalent up to separator style ("topic/auth" vs
// "topic-auth") are accepted.
func (c *Coordinator) ValidateBranchPairing(strict bool) (*PairingResult, error) {
	codeBranch, err := c.code.Git().CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("code repo: %w", err)
	}
	threadsBranch, err := c.threads.Git().CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("threads repo: %w", err)
	}

	result := &PairingResult{Valid: true}

	equal := codeBranch == threadsBranch
	if !strict && !equal {
		equal = normalizeBranch(codeBranch) == normalizeBranch(threadsBranch)
	}
	if !equal {
		result.Valid = false
		result.Mismatches = append(result.Mismatches, Mismatch{
			Kind:    MismatchBranchName,
			Code:    codeBranch,
			Threads: threadsBranch,
		})
	}

	codeRemote := remoteName(c.code.Git())
	threadsRemote := remoteName(c.threads.Git())
	if codeRemote != "" && threadsRemote != "" && codeRemote != threadsRemote {
		result.Valid = false
		result.Mismatches = append(result.Mismatches, Mismatch{
			Kind:    MismatchRemote,
			Code:    codeRemote,
			Threads: threadsRemote,
		})
	}

	return result, nil
}

// normalizeBranch folds separator style for non-strict comparison.
func normalizeBranch(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

// remoteName reports the remote a repository would sync against, empty
// when none is configured.
func remoteName(git gitx.Client) string {
	if !git.HasRemote() {
		return ""
	}
	if r, ok := git.(interface{ RemoteURL() (string, error) }); ok {
		if url, err := r.RemoteURL(); err == nil {
			return url
		}
	}
	return "origin"
}

// BranchReport lists branches on both sides and flags drift: a branch
// present in one repository with no counterpart in the other.
type BranchReport struct {
	CodeBranches    []string
	ThreadsBranches []string

	// CodeOnly are branches in the code repo with no threads
	// counterpart; ThreadsOnly the reverse.
	CodeOnly    []string
	ThreadsOnly []string

	// RemoteOnly are branches on the threads remote with no local
	// counterpart, typically pushed by another agent and not yet
	// fetched.
	RemoteOnly []string
}

// HasDrift reports whether any branch lacks a counterpart.
func (r *BranchReport) HasDrift() bool {
	return len(r.CodeOnly) > 0 || len(r.ThreadsOnly) > 0 || len(r.RemoteOnly) > 0
}

// CheckBranches lists branches in both repositories and computes
// drift. Read-only; never mutates either repository.
func (c *Coordinator) CheckBranches() (*BranchReport, error) {
	codeBranches, err := c.code.Git().ListBranches()
	if err != nil {
		return nil, fmt.Errorf("code repo: %w", err)
	}
	threadsBranches, err := c.threads.Git().ListBranches()
	if err != nil {
		return nil, fmt.Errorf("threads repo: %w", err)
	}

	report := &BranchReport{
		CodeBranches:    codeBranches,
		ThreadsBranches: threadsBranches,
	}

	inThreads := toSet(threadsBranches)
	inCode := toSet(codeBranches)
	for _, b := range codeBranches {
		if !inThreads[b] && !c.isProtected(b) {
			report.CodeOnly = append(report.CodeOnly, b)
		}
	}
	for _, b := range threadsBranches {
		if !inCode[b] && !c.isProtected(b) {
			report.ThreadsOnly = append(report.ThreadsOnly, b)
		}
	}

	all, err := c.threads.Git().ListAllBranches()
	if err != nil {
		return nil, fmt.Errorf("threads repo: %w", err)
	}
	seen := make(map[string]bool)
	for _, b := range all {
		if !b.IsRemote || inThreads[b.Name] || seen[b.Name] || c.isProtected(b.Name) {
			continue
		}
		seen[b.Name] = true
		report.RemoteOnly = append(report.RemoteOnly, b.Name)
	}

	sort.Strings(report.CodeOnly)
	sort.Strings(report.ThreadsOnly)
	sort.Strings(report.RemoteOnly)

	return report, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// loadThreadDoc reads and parses the topic's thread document at a ref.
func (c *Coordinator) loadThreadDoc(ref, topic string) (*thread.Document, error) {
	relPath := threadRelPath(topic)
	data, err := c.threads.Git().ShowFileAtRef(ref, relPath)
	if err != nil {
		return nil, fmt.Errorf("no thread document for topic %s on %s: %w", topic, ref, err)
	}
	return thread.Parse(data)
}

// openThreadGate refuses destructive branch operations on topics whose
// thread is still open, unless forced. Returns a non-empty warning
// message when the gate blocks.
func (c *Coordinator) openThreadGate(branch, topic string, force bool) string {
	if force {
		return ""
	}
	doc, err := c.loadThreadDoc(branch, topic)
	if err != nil {
		// No thread document means nothing to protect.
		return ""
	}
	if doc.Header.Status == thread.StatusOpen {
		return fmt.Sprintf("thread %s is still open (ball: %s); use --force to proceed anyway",
			topic, doc.Header.Ball)
	}
	return ""
}

// MergeToMain merges a topic's thread branch into the threads trunk
// using the thread-document merge strategy, so no entry is ever
// dropped. Open threads are refused without force.
func (c *Coordinator) MergeToMain(ctx context.Context, topic string, force bool) (*Result, error) {
	branch := thread.SanitizeTopic(topic)
	if err := thread.ValidateBranchName(branch); err != nil {
		return nil, err
	}

	git := c.threads.Git()
	if !git.BranchExists(branch) {
		return nil, fmt.Errorf("%w: %s", gitx.ErrRefNotFound, branch)
	}

	if warning := c.openThreadGate(branch, topic, force); warning != "" {
		return &Result{Topic: topic, Status: StatusDrift, Message: warning}, nil
	}

	if err := git.Checkout(c.cfg.TrunkBranch); err != nil {
		return nil, fmt.Errorf("failed to checkout trunk: %w", err)
	}
	if !c.threads.Pull(ctx) {
		c.logger.Printf("WARNING: trunk pull failed: %s", c.threads.LastError())
	}

	if err := git.MergeBranch(ctx, branch); err != nil {
		if !errors.Is(err, gitx.ErrConflicts) {
			return nil, fmt.Errorf("merge failed: %w", err)
		}
		if ok := c.resolveMergeConflicts(git); !ok {
			if abortErr := git.MergeAbort(ctx); abortErr != nil {
				c.logger.Printf("WARNING: merge abort failed: %v", abortErr)
			}
			return &Result{
				Topic:   topic,
				Status:  StatusConflict,
				Message: "merge conflicts outside thread documents require manual resolution",
			}, nil
		}
	}

	// A branch already contained in the trunk merges as "Already up to
	// date": no MERGE_HEAD, nothing staged, nothing to commit.
	if !git.IsInRebaseOrMerge() {
		c.saveBranchOpState(topic, StatusSynced, "already merged to "+c.cfg.TrunkBranch)
		return &Result{
			Topic:   topic,
			Status:  StatusSynced,
			Message: "already merged to " + c.cfg.TrunkBranch,
		}, nil
	}

	message := fmt.Sprintf("tether: merge thread branch %s", branch)
	if err := git.MergeCommit(ctx, message); err != nil {
		return nil, err
	}
	if !c.threads.PushPending(ctx) {
		return &Result{Topic: topic, Status: StatusFailed, Message: c.threads.LastError()}, nil
	}

	c.saveBranchOpState(topic, StatusSynced, "merged to "+c.cfg.TrunkBranch)
	return &Result{Topic: topic, Status: StatusSynced, Message: "merged to " + c.cfg.TrunkBranch}, nil
}

// resolveMergeConflicts applies the document merge strategies to an
// in-progress merge. During a merge, stage 2 is the local (trunk) side
// and stage 3 the incoming branch.
func (c *Coordinator) resolveMergeConflicts(git gitx.Client) bool {
	paths, err := git.ConflictedFiles()
	if err != nil {
		return false
	}
	report := thread.Classify(paths)
	if !report.ThreadOnly {
		return false
	}

	for _, path := range paths {
		mergeFn := thread.MergeFunc(path)
		base, _ := git.ShowStage(1, path)
		local, err := git.ShowStage(2, path)
		if err != nil {
			return false
		}
		remote, err := git.ShowStage(3, path)
		if err != nil {
			return false
		}
		merged, err := mergeFn(base, local, remote)
		if err != nil {
			return false
		}
		if err := writeWorkingFile(git.Root(), path, merged); err != nil {
			return false
		}
		if err := git.AddPath(path); err != nil {
			return false
		}
	}
	return true
}

// Archive closes (or abandons) a topic's thread and deletes its paired
// branch in the threads repository. The final thread status is pushed
// on the branch before deletion so it survives in history.
func (c *Coordinator) Archive(ctx context.Context, topic string, abandon, force bool) (*Result, error) {
	branch := thread.SanitizeTopic(topic)
	if err := thread.ValidateBranchName(branch); err != nil {
		return nil, err
	}
	if c.isProtected(branch) && !c.cfg.AllowProtected {
		return nil, fmt.Errorf("%w: %s", ErrProtectedBranch, branch)
	}

	git := c.threads.Git()
	if !git.BranchExists(branch) {
		return nil, fmt.Errorf("%w: %s", gitx.ErrRefNotFound, branch)
	}

	if warning := c.openThreadGate(branch, topic, force); warning != "" {
		return &Result{Topic: topic, Status: StatusDrift, Message: warning}, nil
	}

	finalStatus := thread.StatusClosed
	if abandon {
		finalStatus = thread.StatusAbandoned
	}

	if err := git.Checkout(branch); err != nil {
		return nil, err
	}
	doc, err := c.loadThreadDoc(branch, topic)
	if err == nil {
		doc.SetStatus(finalStatus, time.Now())
		rendered, rerr := doc.Render()
		if rerr != nil {
			return nil, rerr
		}
		relPath := threadRelPath(topic)
		if err := writeWorkingFile(git.Root(), relPath, rendered); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("tether: %s thread %s", finalStatus, branch)
		if !c.threads.CommitAndPush(ctx, message) {
			return &Result{Topic: topic, Status: StatusFailed, Message: c.threads.LastError()}, nil
		}
	}

	if err := git.Checkout(c.cfg.TrunkBranch); err != nil {
		return nil, err
	}
	if err := git.DeleteBranch(branch); err != nil {
		return nil, err
	}
	if err := git.DeleteRemoteBranch(ctx, branch); err != nil {
		c.logger.Printf("WARNING: failed to delete remote branch %s: %v", branch, err)
	}

	c.saveBranchOpState(topic, StatusSynced, string(finalStatus))
	return &Result{
		Topic:   topic,
		Status:  StatusSynced,
		Message: fmt.Sprintf("thread %s %s, branch deleted", topic, finalStatus),
	}, nil
}

// saveBranchOpState records the outcome of a branch lifecycle
// operation in the parity store.
func (c *Coordinator) saveBranchOpState(topic string, status Status, note string) {
	state := &State{
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	if b, err := c.threads.Git().CurrentBranch(); err == nil {
		state.ThreadsBranch = b
	}
	if b, err := c.code.Git().CurrentBranch(); err == nil {
		state.CodeBranch = b
	}
	if status != StatusSynced {
		state.LastError = note
	}
	if err := c.store.Save(topic, state); err != nil {
		c.logger.Printf("WARNING: failed to persist parity state for %s: %v", topic, err)
	}
}
