package parity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/mschirtzinger/tether/internal/gitx"
	"github.com/mschirtzinger/tether/internal/lock"
	"github.com/mschirtzinger/tether/internal/syncer"
)

// fakeGit is a scriptable in-memory gitx.Client. Branch state and
// recorded operations let tests assert on remediation decisions
// without real repositories.
type fakeGit struct {
	root     string
	branch   string
	branches map[string]bool
	dirty    bool

	// remoteBranches are remote-tracking refs with no required local
	// counterpart.
	remoteBranches map[string]bool

	// merging models an in-progress merge (MERGE_HEAD present).
	// alreadyMerged scripts MergeBranch answering "Already up to
	// date", which leaves no merge in progress.
	merging       bool
	alreadyMerged bool

	// popErr scripts a StashPop failure.
	popErr error

	// docs maps "ref:path" to file content for ShowFileAtRef.
	docs map[string][]byte

	checkouts     []string
	created       []string
	deleted       []string
	remoteDeleted []string
	commits       []string
	stashPushes   int
	stashPops     int
}

func newFakeGit(t *testing.T, branch string) *fakeGit {
	t.Helper()
	return &fakeGit{
		root:           t.TempDir(),
		branch:         branch,
		branches:       map[string]bool{branch: true},
		remoteBranches: map[string]bool{},
		docs:           map[string][]byte{},
	}
}

func (f *fakeGit) Root() string { return f.root }
func (f *fakeGit) CurrentBranch() (string, error) { return f.branch, nil }
func (f *fakeGit) CommitHash(string) (string, error) {
	return "0123456789abcdef0123456789abcdef01234567", nil
}
func (f *fakeGit) HasChanges(...string) (bool, error) { return f.dirty, nil }
func (f *fakeGit) ConflictedFiles() ([]string, error) { return nil, nil }
func (f *fakeGit) IsInRebaseOrMerge() bool { return f.merging }
func (f *fakeGit) AddAll() error { return nil }
func (f *fakeGit) AddPath(string) error { return nil }

func (f *fakeGit) Commit(_ context.Context, message string) error {
	f.commits = append(f.commits, message)
	f.dirty = false
	return nil
}

func (f *fakeGit) BranchExists(name string) bool { return f.branches[name] }
func (f *fakeGit) RemoteBranchExists(name string) bool { return f.remoteBranches[name] }

func (f *fakeGit) Checkout(name string) error {
	f.checkouts = append(f.checkouts, name)
	if !f.branches[name] {
		return fmt.Errorf("%w: %s", gitx.ErrRefNotFound, name)
	}
	f.branch = name
	return nil
}

func (f *fakeGit) CreateBranch(name string) error {
	f.created = append(f.created, name)
	f.branches[name] = true
	f.branch = name
	return nil
}

func (f *fakeGit) DeleteBranch(name string) error {
	if !f.branches[name] {
		return fmt.Errorf("%w: %s", gitx.ErrRefNotFound, name)
	}
	delete(f.branches, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeGit) DeleteRemoteBranch(_ context.Context, name string) error {
	f.remoteDeleted = append(f.remoteDeleted, name)
	return nil
}

func (f *fakeGit) ListBranches() ([]string, error) {
	var names []string
	for name := range f.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeGit) ListAllBranches() ([]gitx.BranchInfo, error) {
	var infos []gitx.BranchInfo
	for name := range f.branches {
		infos = append(infos, gitx.BranchInfo{Name: name})
	}
	for name := range f.remoteBranches {
		infos = append(infos, gitx.BranchInfo{Name: name, IsRemote: true})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (f *fakeGit) HasRemote() bool { return false }
func (f *fakeGit) RemoteIsEmpty(context.Context) (bool, error) { return true, nil }
func (f *fakeGit) Fetch(context.Context) error { return nil }
func (f *fakeGit) Pull(context.Context, gitx.PullOptions) error { return nil }
func (f *fakeGit) Push(context.Context) error { return nil }
func (f *fakeGit) StashPush(string) (bool, error) {
	if !f.dirty {
		return false, nil
	}
	f.dirty = false
	f.stashPushes++
	return true, nil
}

func (f *fakeGit) StashPop() error {
	if f.popErr != nil {
		return f.popErr
	}
	f.stashPops++
	f.dirty = true
	return nil
}

func (f *fakeGit) ShowStage(stage int, path string) ([]byte, error) {
	return nil, fmt.Errorf("no stage %d for %s", stage, path)
}

func (f *fakeGit) ShowFileAtRef(ref, path string) ([]byte, error) {
	data, ok := f.docs[ref+":"+path]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", gitx.ErrRefNotFound, ref, path)
	}
	return data, nil
}

func (f *fakeGit) RebaseContinue(context.Context) error { return nil }
func (f *fakeGit) RebaseAbort(context.Context) error { return nil }

func (f *fakeGit) MergeBranch(context.Context, string) error {
	if !f.alreadyMerged {
		f.merging = true
	}
	return nil
}

func (f *fakeGit) MergeCommit(_ context.Context, message string) error {
	f.commits = append(f.commits, message)
	f.merging = false
	return nil
}

func (f *fakeGit) MergeAbort(context.Context) error {
	f.merging = false
	return nil
}

// newTestCoordinator wires a coordinator over two fakes in local-only
// mode with a short lock timeout.
func newTestCoordinator(t *testing.T, code, threads *fakeGit, cfg Config) *Coordinator {
	t.Helper()
	codeMgr := syncer.NewWithClient(syncer.Config{Path: code.root}, code, nil)
	threadsMgr := syncer.NewWithClient(syncer.Config{Path: threads.root}, threads, nil)
	if cfg.Lock.Timeout == 0 {
		cfg.Lock = lock.Options{
			Timeout:    200 * time.Millisecond,
			TTL:        10 * time.Minute,
			RetryDelay: 20 * time.Millisecond,
		}
	}
	return New(codeMgr, threadsMgr, cfg, nil)
}

const openThreadDoc = `---
topic: feature-auth
status: open
ball: agent-blue
branch: feature-auth
created_at: 2026-08-30T10:00:00Z
updated_at: 2026-08-30T11:00:00Z
---

## [e-9f2c1a] 2026-08-30T10:05:00Z agent-blue

Started the auth rework.
`

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	if state, err := store.Load("missing"); err != nil || state != nil {
		t.Fatalf("Load of absent topic = (%v, %v), want (nil, nil)", state, err)
	}

	saved := &State{
		Status:        StatusSynced,
		CodeBranch:    "feature-auth",
		ThreadsBranch: "feature-auth",
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save("feature-auth", saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("feature-auth")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Status != StatusSynced || loaded.CodeBranch != "feature-auth" {
		t.Errorf("loaded state = %+v, want %+v", loaded, saved)
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 || all["feature-auth"] == nil {
		t.Errorf("List = %v, want one entry for feature-auth", all)
	}
}

func TestPreflightIdempotent(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "main")
	threads.dirty = true
	c := newTestCoordinator(t, code, threads, Config{})

	first, err := c.RunPreflight()
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	second, err := c.RunPreflight()
	if err != nil {
		t.Fatalf("second preflight failed: %v", err)
	}

	if first.BranchMatch || second.BranchMatch {
		t.Error("expected branch mismatch")
	}
	if first.ThreadsClean || second.ThreadsClean {
		t.Error("expected dirty threads tree")
	}
	if !first.Protected {
		t.Error("main should be protected by default")
	}
	if len(first.Issues) != len(second.Issues) {
		t.Errorf("preflight not idempotent: %v vs %v", first.Issues, second.Issues)
	}
}

func TestValidateBranchPairing(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "main")
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.ValidateBranchPairing(true)
	if err != nil {
		t.Fatalf("pairing validation failed: %v", err)
	}
	if result.Valid {
		t.Fatal("feature-auth vs main should be invalid")
	}
	if len(result.Mismatches) != 1 || result.Mismatches[0].Kind != MismatchBranchName {
		t.Errorf("mismatches = %+v, want one branch_name_mismatch", result.Mismatches)
	}
	if result.Mismatches[0].Code != "feature-auth" || result.Mismatches[0].Threads != "main" {
		t.Errorf("mismatch sides = %+v", result.Mismatches[0])
	}

	threads.branch = "feature-auth"
	result, err = c.ValidateBranchPairing(true)
	if err != nil {
		t.Fatalf("pairing validation failed: %v", err)
	}
	if !result.Valid || len(result.Mismatches) != 0 {
		t.Errorf("matching branches should validate, got %+v", result)
	}
}

func TestValidateBranchPairingSeparatorStyle(t *testing.T) {
	code := newFakeGit(t, "topic/auth")
	threads := newFakeGit(t, "topic-auth")
	c := newTestCoordinator(t, code, threads, Config{})

	strict, err := c.ValidateBranchPairing(true)
	if err != nil {
		t.Fatalf("pairing validation failed: %v", err)
	}
	if strict.Valid {
		t.Error("separator variants should fail strict validation")
	}

	loose, err := c.ValidateBranchPairing(false)
	if err != nil {
		t.Fatalf("pairing validation failed: %v", err)
	}
	if !loose.Valid {
		t.Errorf("separator variants should pass non-strict validation, got %+v", loose)
	}
}

func TestSyncHappyPath(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "feature-auth")
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}

	state, err := c.Store().Load("feature-auth")
	if err != nil || state == nil {
		t.Fatalf("no parity state persisted: %v", err)
	}
	if state.Status != StatusSynced || state.ThreadsBranch != "feature-auth" {
		t.Errorf("persisted state = %+v", state)
	}
	if state.LastSyncedCommit == "" {
		t.Error("expected last_synced_commit to be recorded")
	}

	if _, err := os.Stat(c.LockPath("feature-auth")); !os.IsNotExist(err) {
		t.Error("lock file should be released after sync")
	}
}

func TestSyncRepairsBranchMismatch(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "topic-old")
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}
	if threads.branch != "feature-auth" {
		t.Errorf("threads branch = %s, want feature-auth", threads.branch)
	}
	if len(threads.created) != 1 || threads.created[0] != "feature-auth" {
		t.Errorf("created branches = %v, want [feature-auth]", threads.created)
	}
}

func TestSyncRestoresStashedWork(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "feature-auth")
	threads.dirty = true
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}
	if threads.stashPushes != 1 || threads.stashPops != 1 {
		t.Errorf("stash round-trip = %d pushes, %d pops, want 1/1", threads.stashPushes, threads.stashPops)
	}
	// Restored work rides along in the sync commit.
	if len(threads.commits) != 1 {
		t.Errorf("commits = %v, want the sync commit", threads.commits)
	}
}

func TestSyncStashRestoreFailureRecordsDirty(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "feature-auth")
	threads.dirty = true
	threads.popErr = gitx.ErrConflicts
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	if result.Status != StatusDirty {
		t.Fatalf("status = %s (%s), want dirty", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "stash") {
		t.Errorf("message = %q, want stash restore report", result.Message)
	}
	if len(threads.commits) != 0 {
		t.Error("nothing should be committed over an unrestored stash")
	}

	state, err := c.Store().Load("feature-auth")
	if err != nil || state == nil {
		t.Fatalf("no persisted state: %v", err)
	}
	if state.Status != StatusDirty {
		t.Errorf("persisted status = %s, want dirty", state.Status)
	}
}

func TestSyncRefusesProtectedBranchRepair(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "main")
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Status != StatusDrift {
		t.Fatalf("status = %s, want drift", result.Status)
	}
	if !strings.Contains(result.Message, "protected") {
		t.Errorf("message = %q, want protected-branch refusal", result.Message)
	}
	if threads.branch != "main" {
		t.Errorf("threads branch moved to %s despite refusal", threads.branch)
	}
}

func TestSyncHeldLock(t *testing.T) {
	code := newFakeGit(t, "feature-auth")
	threads := newFakeGit(t, "feature-auth")
	c := newTestCoordinator(t, code, threads, Config{})

	lockPath := c.LockPath("feature-auth")
	acquired, err := lock.Acquire(lockPath, lock.Options{Timeout: time.Second, HolderName: "other"})
	if err != nil || !acquired {
		t.Fatalf("failed to pre-acquire lock: %v", err)
	}
	defer lock.Release(lockPath)

	result, err := c.Sync(context.Background(), "feature-auth")
	if err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if !strings.Contains(result.Message, "locked") {
		t.Errorf("message = %q, want lock contention report", result.Message)
	}
	if !strings.Contains(result.Message, lock.ErrTimeout.Error()) {
		t.Errorf("message = %q, want the lock timeout cause", result.Message)
	}
	if len(threads.commits) != 0 {
		t.Error("no sync work should happen under a held lock")
	}
}

func TestMergeToMainOpenThreadGate(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "feature-auth")
	threads.branches["main"] = true
	threads.docs["feature-auth:threads/feature-auth.md"] = []byte(openThreadDoc)
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.MergeToMain(context.Background(), "feature-auth", false)
	if err != nil {
		t.Fatalf("merge returned error: %v", err)
	}
	if result.Status != StatusDrift {
		t.Fatalf("status = %s, want drift", result.Status)
	}
	if !strings.Contains(result.Message, "open") || !strings.Contains(result.Message, "feature-auth") {
		t.Errorf("gate message = %q, want open-thread warning naming the topic", result.Message)
	}
	if len(threads.checkouts) != 0 {
		t.Errorf("gate should block before any checkout, got %v", threads.checkouts)
	}
}

func TestMergeToMainForced(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "feature-auth")
	threads.branches["main"] = true
	threads.docs["feature-auth:threads/feature-auth.md"] = []byte(openThreadDoc)
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.MergeToMain(context.Background(), "feature-auth", true)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}
	if threads.branch != "main" {
		t.Errorf("should end on trunk, got %s", threads.branch)
	}
	if len(threads.commits) != 1 || !strings.Contains(threads.commits[0], "merge thread branch feature-auth") {
		t.Errorf("commits = %v, want one merge commit", threads.commits)
	}
}

func TestMergeToMainAlreadyMerged(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "feature-auth")
	threads.branches["main"] = true
	threads.alreadyMerged = true
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.MergeToMain(context.Background(), "feature-auth", true)
	if err != nil {
		t.Fatalf("merge of an already-merged branch failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "already merged") {
		t.Errorf("message = %q, want already-merged outcome", result.Message)
	}
	if len(threads.commits) != 0 {
		t.Errorf("commits = %v, want none when nothing was merged", threads.commits)
	}
}

func TestArchiveAbandon(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "main")
	threads.branches["feature-auth"] = true
	threads.docs["feature-auth:threads/feature-auth.md"] = []byte(openThreadDoc)
	// The fake cannot observe the document rewrite, so script the dirty
	// tree the rewrite would leave behind.
	threads.dirty = true
	c := newTestCoordinator(t, code, threads, Config{})

	result, err := c.Archive(context.Background(), "feature-auth", true, true)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if result.Status != StatusSynced {
		t.Fatalf("status = %s (%s), want synced", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "abandoned") {
		t.Errorf("message = %q, want abandoned outcome", result.Message)
	}

	if threads.branches["feature-auth"] {
		t.Error("thread branch should be deleted")
	}
	if threads.branch != "main" {
		t.Errorf("should end on trunk, got %s", threads.branch)
	}
	if len(threads.commits) != 1 || !strings.Contains(threads.commits[0], "abandoned thread feature-auth") {
		t.Errorf("commits = %v, want one abandon commit", threads.commits)
	}

	// The rewritten document carries the final status.
	data, err := os.ReadFile(filepath.Join(threads.root, "threads", "feature-auth.md"))
	if err != nil {
		t.Fatalf("rewritten thread document missing: %v", err)
	}
	if !strings.Contains(string(data), "status: abandoned") {
		t.Errorf("document status not updated:\n%s", data)
	}
}

func TestArchiveRefusesProtectedBranch(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "main")
	c := newTestCoordinator(t, code, threads, Config{})

	_, err := c.Archive(context.Background(), "main", false, true)
	if err == nil || !strings.Contains(err.Error(), "protected") {
		t.Errorf("archive of trunk = %v, want protected-branch refusal", err)
	}
}

func TestCheckBranchesDrift(t *testing.T) {
	code := newFakeGit(t, "main")
	code.branches["feature-auth"] = true
	code.branches["feature-db"] = true
	threads := newFakeGit(t, "main")
	threads.branches["feature-auth"] = true
	threads.branches["topic-stale"] = true
	c := newTestCoordinator(t, code, threads, Config{})

	report, err := c.CheckBranches()
	if err != nil {
		t.Fatalf("check-branches failed: %v", err)
	}
	if !report.HasDrift() {
		t.Fatal("expected drift")
	}
	if len(report.CodeOnly) != 1 || report.CodeOnly[0] != "feature-db" {
		t.Errorf("CodeOnly = %v, want [feature-db]", report.CodeOnly)
	}
	if len(report.ThreadsOnly) != 1 || report.ThreadsOnly[0] != "topic-stale" {
		t.Errorf("ThreadsOnly = %v, want [topic-stale]", report.ThreadsOnly)
	}
}

func TestCheckBranchesRemoteOnlyDrift(t *testing.T) {
	code := newFakeGit(t, "main")
	code.branches["feature-auth"] = true
	threads := newFakeGit(t, "main")
	threads.branches["feature-auth"] = true
	// A fetched counterpart is not drift; an unfetched remote branch is.
	threads.remoteBranches["feature-auth"] = true
	threads.remoteBranches["topic-review"] = true
	c := newTestCoordinator(t, code, threads, Config{})

	report, err := c.CheckBranches()
	if err != nil {
		t.Fatalf("check-branches failed: %v", err)
	}
	if len(report.CodeOnly) != 0 || len(report.ThreadsOnly) != 0 {
		t.Errorf("local drift = %v/%v, want none", report.CodeOnly, report.ThreadsOnly)
	}
	if len(report.RemoteOnly) != 1 || report.RemoteOnly[0] != "topic-review" {
		t.Errorf("RemoteOnly = %v, want [topic-review]", report.RemoteOnly)
	}
	if !report.HasDrift() {
		t.Error("an unfetched remote branch should count as drift")
	}
}

func TestHealth(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "main")
	c := newTestCoordinator(t, code, threads, Config{})

	recent := time.Now().UTC().Truncate(time.Second)
	older := recent.Add(-time.Hour)
	saves := map[string]*State{
		"topic-a": {Status: StatusSynced, UpdatedAt: older},
		"topic-b": {Status: StatusSynced, UpdatedAt: recent},
		"topic-c": {Status: StatusDrift, UpdatedAt: older},
		"topic-d": {Status: StatusFailed, UpdatedAt: older, LastError: "push retries exhausted"},
		"topic-f": {Status: StatusDirty, UpdatedAt: older, LastError: "stash restore failed"},
	}
	for topic, state := range saves {
		if err := c.Store().Save(topic, state); err != nil {
			t.Fatalf("save %s: %v", topic, err)
		}
	}

	lockPath := c.LockPath("topic-e")
	acquired, err := lock.Acquire(lockPath, lock.Options{Timeout: time.Second, HolderName: "worker"})
	if err != nil || !acquired {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	defer lock.Release(lockPath)

	report, err := c.Health()
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}

	if report.Synced != 2 || report.Dirty != 1 || report.Drifted != 1 || report.Failed != 1 {
		t.Errorf("counts = synced %d dirty %d drifted %d failed %d, want 2/1/1/1",
			report.Synced, report.Dirty, report.Drifted, report.Failed)
	}
	if report.Locked != 1 {
		t.Errorf("locked = %d, want 1", report.Locked)
	}
	if !report.LastSync.Equal(recent) {
		t.Errorf("last sync = %v, want %v", report.LastSync, recent)
	}
	if len(report.Topics) != 6 {
		t.Fatalf("topics = %d, want 6", len(report.Topics))
	}

	var lockedRow *TopicHealth
	for i := range report.Topics {
		if report.Topics[i].Topic == "topic-e" {
			lockedRow = &report.Topics[i]
		}
	}
	if lockedRow == nil || !lockedRow.Locked || !strings.Contains(lockedRow.LockHolder, "worker") {
		t.Errorf("lock-only topic row = %+v, want held by worker", lockedRow)
	}
}

func TestIsProtectedGlobs(t *testing.T) {
	code := newFakeGit(t, "main")
	threads := newFakeGit(t, "main")
	c := newTestCoordinator(t, code, threads, Config{
		ProtectedBranches: []string{"main", "release-*"},
	})

	cases := []struct {
		branch string
		want   bool
	}{
		{"main", true},
		{"release-2026.1", true},
		{"feature-auth", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := c.isProtected(tc.branch); got != tc.want {
			t.Errorf("isProtected(%q) = %v, want %v", tc.branch, got, tc.want)
		}
	}
}
