package gitx

import (
	"errors"
	"strings"
)

// Sentinel errors returned by git operations. Check with errors.Is:
//
//	if errors.Is(err, gitx.ErrPushRejected) {
//	    // pull --rebase and retry
//	}
var (
	// ErrNotARepo is returned when the path is not inside a git
	// working copy.
	ErrNotARepo = errors.New("not a git repository")

	// ErrDetached is returned when an operation needs a branch but
	// HEAD is detached.
	ErrDetached = errors.New("not on a branch")

	// ErrNoRemote is returned when an operation requires a remote but
	// none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrRefNotFound is returned when a named branch does not exist.
	ErrRefNotFound = errors.New("branch not found")

	// ErrPushRejected is returned when the remote refuses a push
	// because it has advanced (non-fast-forward). Usually resolves
	// after a pull --rebase.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrNetwork is returned when the remote is unreachable. Retrying
	// without operator attention is pointless.
	ErrNetwork = errors.New("remote unreachable")

	// ErrConflicts is returned when a pull or merge stops on
	// conflicting paths. The working copy is left in the conflicted
	// state for the caller to resolve or abort.
	ErrConflicts = errors.New("unresolved conflicts")
)

// IsRetryable reports whether the error is expected contention that a
// pull-then-retry cycle can clear.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPushRejected)
}

// IsFatal reports whether the error indicates a broken or missing
// repository rather than a transient condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotARepo) || errors.Is(err, ErrNetwork)
}

// networkFailurePatterns are substrings git prints when the transport
// layer fails. Matched case-insensitively against combined output.
var networkFailurePatterns = []string{
	"could not resolve host",
	"connection refused",
	"connection timed out",
	"operation timed out",
	"network is unreachable",
	"could not read from remote repository",
	"unable to access",
	"the remote end hung up unexpectedly",
}

// rejectionPatterns indicate the remote understood the push and said no
// because it has newer commits.
var rejectionPatterns = []string{
	"non-fast-forward",
	"fetch first",
	"[rejected]",
	"failed to push some refs",
}

// classifyPushFailure maps git push output to ErrNetwork or
// ErrPushRejected. Order matters: transport failures also mention
// failed refs, so the network check runs first.
func classifyPushFailure(output string) error {
	lower := strings.ToLower(output)
	for _, p := range networkFailurePatterns {
		if strings.Contains(lower, p) {
			return ErrNetwork
		}
	}
	for _, p := range rejectionPatterns {
		if strings.Contains(lower, p) {
			return ErrPushRejected
		}
	}
	return nil
}

// looksLikeConflict reports whether pull/merge output indicates
// conflicting paths.
func looksLikeConflict(output string) bool {
	return strings.Contains(output, "CONFLICT") ||
		strings.Contains(strings.ToLower(output), "fix conflicts")
}
