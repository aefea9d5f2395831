package thread

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is returned when a topic or branch name fails
// validation. Names are rejected before any mutating git operation.
var ErrInvalidName = errors.New("invalid name")

// maxNameLength bounds sanitized topics and branch names. Git refs
// tolerate much longer, but long names break lock-file paths on some
// filesystems.
const maxNameLength = 100

// unsafeChars matches everything outside the safe identifier set for
// filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeTopic maps a topic to a safe filename component: unsafe
// characters collapse to single dashes, repeats collapse, and the
// result is trimmed and truncated.
func SanitizeTopic(topic string) string {
	s := unsafeChars.ReplaceAllString(topic, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-.")
	if len(s) > maxNameLength {
		s = strings.Trim(s[:maxNameLength], "-.")
	}
	return s
}

// unsafeBranchPatterns reject path traversal, reserved ref syntax, and
// names git itself refuses.
var unsafeBranchPatterns = []string{
	"..", "//", "@{", "\\", " ", "~", "^", ":", "?", "*", "[",
}

// ValidateBranchName rejects names that would produce invalid or
// unsafe refs. Returns ErrInvalidName with a reason.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty branch name", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: branch name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: branch name %q has unsafe leading/trailing characters", ErrInvalidName, name)
	}

	for _, p := range unsafeBranchPatterns {
		if strings.Contains(name, p) {
			return fmt.Errorf("%w: branch name %q contains %q", ErrInvalidName, name, p)
		}
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: branch name contains control characters", ErrInvalidName)
		}
	}

	return nil
}
