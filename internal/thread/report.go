package thread

import (
	"path/filepath"
	"strings"
)

// DocKind identifies which merge strategy applies to a conflicting
// path.
type DocKind int

const (
	// KindUnknown marks paths outside the recognized document shapes.
	// Conflicts on these are never auto-resolved.
	KindUnknown DocKind = iota

	// KindThread is an append-only markdown thread document.
	KindThread

	// KindManifest is the shallow JSON manifest.
	KindManifest

	// KindJSONL is the append-only JSONL event log.
	KindJSONL
)

// String returns a human-readable kind name.
func (k DocKind) String() string {
	switch k {
	case KindThread:
		return "thread"
	case KindManifest:
		return "manifest"
	case KindJSONL:
		return "log"
	default:
		return "unknown"
	}
}

// ConflictReport classifies the conflicting paths left by a pull or
// merge. Only conflicts confined entirely to recognized thread
// documents are eligible for automatic resolution; everything else is
// surfaced to the operator unresolved.
type ConflictReport struct {
	// HasConflicts reports whether any path is conflicted.
	HasConflicts bool

	// Paths are the conflicting paths as reported by git.
	Paths []string

	// ThreadOnly is true when every conflicting path is a recognized
	// document shape.
	ThreadOnly bool
}

// KindOf classifies a repository-relative path.
func KindOf(path string) DocKind {
	base := filepath.Base(path)
	switch {
	case base == "manifest.json":
		return KindManifest
	case strings.HasSuffix(base, ".jsonl"):
		return KindJSONL
	case strings.HasSuffix(base, ".md") && strings.Contains(filepath.ToSlash(path), "threads/"):
		return KindThread
	case strings.HasSuffix(base, ".md") && !strings.Contains(filepath.ToSlash(path), "/"):
		// Thread files at the repository root are also recognized.
		return KindThread
	default:
		return KindUnknown
	}
}

// Classify builds a ConflictReport from git's conflicting paths.
func Classify(paths []string) ConflictReport {
	report := ConflictReport{
		HasConflicts: len(paths) > 0,
		Paths:        paths,
		ThreadOnly:   len(paths) > 0,
	}
	for _, p := range paths {
		if KindOf(p) == KindUnknown {
			report.ThreadOnly = false
			break
		}
	}
	return report
}

// MergeFunc returns the merge strategy for a path, or nil when no
// strategy applies.
func MergeFunc(path string) func(base, local, remote []byte) ([]byte, error) {
	switch KindOf(path) {
	case KindThread:
		return Merge
	case KindManifest:
		return MergeManifest
	case KindJSONL:
		return MergeJSONL
	default:
		return nil
	}
}
