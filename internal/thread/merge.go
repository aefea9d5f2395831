package thread

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrEntryDiverged is returned when the same entry id carries different
// bodies on the two sides. Editing a historical entry's body breaks the
// append-only contract, so the merge refuses rather than pick a side.
var ErrEntryDiverged = errors.New("entry edited on both sides")

// Merge reconciles two divergent copies of a thread document. The
// result is the union of all entries from both sides, chronologically
// ordered, with no entry ever dropped. Header fields that represent
// current state (status, ball, branch) are taken wholesale from the
// side with the newer updated_at; the header is regenerated, not
// text-patched.
//
// base is the common-ancestor content and may be nil for add/add
// conflicts. The merge is deterministic and idempotent: merging the
// same inputs again, or merging a result with one of its inputs,
// yields the same output.
func Merge(base, local, remote []byte) ([]byte, error) {
	localDoc, err := Parse(local)
	if err != nil {
		return nil, fmt.Errorf("local side: %w", err)
	}
	remoteDoc, err := Parse(remote)
	if err != nil {
		return nil, fmt.Errorf("remote side: %w", err)
	}

	// base is only consulted to distinguish "edited on one side" from
	// "edited on both"; a missing ancestor degrades to strict equality
	// checking on shared ids.
	baseBodies := map[string]string{}
	if len(base) > 0 {
		if baseDoc, err := Parse(base); err == nil {
			for _, e := range baseDoc.Entries {
				baseBodies[e.ID] = e.Body
			}
		}
	}

	merged := &Document{}

	// Union entries by id. Shared ids must agree on body unless only
	// one side diverged from the ancestor.
	remoteByID := make(map[string]Entry, len(remoteDoc.Entries))
	for _, e := range remoteDoc.Entries {
		remoteByID[e.ID] = e
	}

	seen := map[string]bool{}
	for _, e := range localDoc.Entries {
		if other, ok := remoteByID[e.ID]; ok && other.Body != e.Body {
			baseBody, hadBase := baseBodies[e.ID]
			switch {
			case hadBase && e.Body == baseBody:
				e = other // remote edited, local untouched
			case hadBase && other.Body == baseBody:
				// local edited, remote untouched; keep local
			default:
				return nil, fmt.Errorf("%w: %s", ErrEntryDiverged, e.ID)
			}
		}
		merged.Entries = append(merged.Entries, e)
		seen[e.ID] = true
	}
	for _, e := range remoteDoc.Entries {
		if !seen[e.ID] {
			merged.Entries = append(merged.Entries, e)
		}
	}
	sortEntries(merged.Entries)

	// Regenerate the header from winning values: most recent
	// updated_at takes the current-state fields.
	winner, loser := localDoc.Header, remoteDoc.Header
	if remoteDoc.Header.UpdatedAt.After(localDoc.Header.UpdatedAt) {
		winner, loser = remoteDoc.Header, localDoc.Header
	}
	merged.Header = winner
	if loser.CreatedAt.Before(winner.CreatedAt) && !loser.CreatedAt.IsZero() {
		merged.Header.CreatedAt = loser.CreatedAt
	}

	return merged.Render()
}

// MergeJSONL reconciles two copies of an append-only JSONL event log.
// Records are keyed by their "id" field (falling back to the raw line
// for records without one); the result is the deduplicated union with
// local records first in their original order, then remote-only
// records appended in theirs.
func MergeJSONL(base, local, remote []byte) ([]byte, error) {
	localLines := jsonlLines(local)
	remoteLines := jsonlLines(remote)

	var out []string
	seen := map[string]bool{}

	appendLine := func(line string) {
		key := recordKey(line)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, line)
	}

	for _, line := range localLines {
		appendLine(line)
	}
	for _, line := range remoteLines {
		appendLine(line)
	}

	if len(out) == 0 {
		return []byte{}, nil
	}
	return []byte(strings.Join(out, "\n") + "\n"), nil
}

// jsonlLines splits JSONL content into trimmed non-empty lines.
func jsonlLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// recordKey extracts the record identity for deduplication.
func recordKey(line string) string {
	if id := gjson.Get(line, "id"); id.Exists() {
		return "id:" + id.String()
	}
	return "raw:" + line
}

// MergeManifest reconciles two copies of the shallow JSON manifest.
// Rules:
//   - a key present on one side only is kept;
//   - list values are unioned (local order, then remote-only values);
//   - conflicting scalars resolve to the side whose document-level
//     updated_at is newer;
//   - keys named {list}_count are recomputed from the merged list
//     rather than merged arithmetically.
//
// Output key order follows the local document, with remote-only keys
// appended in remote order, so the merge is deterministic.
func MergeManifest(base, local, remote []byte) ([]byte, error) {
	localDoc := gjson.ParseBytes(local)
	remoteDoc := gjson.ParseBytes(remote)
	if !localDoc.IsObject() || !remoteDoc.IsObject() {
		return nil, fmt.Errorf("manifest merge requires JSON objects on both sides")
	}

	remoteNewer := remoteDoc.Get("updated_at").Time().After(localDoc.Get("updated_at").Time())

	out := "{}"
	var err error

	set := func(key string, raw string) {
		if err != nil {
			return
		}
		out, err = sjson.SetRaw(out, escapeKey(key), raw)
	}

	localDoc.ForEach(func(key, localVal gjson.Result) bool {
		remoteVal := remoteDoc.Get(escapeKey(key.String()))
		switch {
		case !remoteVal.Exists():
			set(key.String(), localVal.Raw)
		case localVal.IsArray() && remoteVal.IsArray():
			set(key.String(), unionArray(localVal, remoteVal))
		case localVal.Raw == remoteVal.Raw:
			set(key.String(), localVal.Raw)
		case remoteNewer:
			set(key.String(), remoteVal.Raw)
		default:
			set(key.String(), localVal.Raw)
		}
		return err == nil
	})

	remoteDoc.ForEach(func(key, remoteVal gjson.Result) bool {
		if !localDoc.Get(escapeKey(key.String())).Exists() {
			set(key.String(), remoteVal.Raw)
		}
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest merge failed: %w", err)
	}

	// Recompute derived counts from the merged content.
	mergedDoc := gjson.Parse(out)
	mergedDoc.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		if !strings.HasSuffix(name, "_count") {
			return true
		}
		listKey := strings.TrimSuffix(name, "_count") + "s"
		list := mergedDoc.Get(escapeKey(listKey))
		if list.IsArray() {
			out, err = sjson.Set(out, escapeKey(name), len(list.Array()))
		}
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest count recompute failed: %w", err)
	}

	return []byte(out), nil
}

// unionArray merges two JSON arrays, keeping local order and appending
// remote-only values.
func unionArray(local, remote gjson.Result) string {
	seen := map[string]bool{}
	var parts []string

	for _, v := range local.Array() {
		if !seen[v.Raw] {
			seen[v.Raw] = true
			parts = append(parts, v.Raw)
		}
	}
	for _, v := range remote.Array() {
		if !seen[v.Raw] {
			seen[v.Raw] = true
			parts = append(parts, v.Raw)
		}
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// escapeKey protects dots in manifest keys from gjson path syntax.
func escapeKey(key string) string {
	key = strings.ReplaceAll(key, ".", `\.`)
	return strings.ReplaceAll(key, "*", `\*`)
}
