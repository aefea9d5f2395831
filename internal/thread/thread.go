// Package thread implements the thread document format and the
// content-aware merge strategies for the three persisted file shapes:
// append-only markdown threads, the JSON manifest, and the JSONL event
// log.
//
// A thread document is a YAML frontmatter header followed by an
// append-only sequence of timestamped entries:
//
//	---
//	topic: auth-rework
//	status: open
//	ball: agent-blue
//	branch: feature-auth
//	created_at: 2026-08-30T10:00:00Z
//	updated_at: 2026-08-30T11:00:00Z
//	---
//
//	## [e-9f2c1a] 2026-08-30T10:05:00Z agent-blue
//
//	entry body...
//
// Entries carry an immutable id assigned at creation; the id is the
// identity the merge strategies union on.
package thread

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Thread status values. A merge to trunk closes a thread; archiving
// with --abandon marks it abandoned instead.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusAbandoned = "abandoned"
)

// Header is the "current state" metadata at the top of a thread
// document. On merge it is regenerated from winning values, never
// patched textually.
type Header struct {
	Topic     string    `yaml:"topic"`
	Status    string    `yaml:"status"`
	Ball      string    `yaml:"ball,omitempty"`
	Branch    string    `yaml:"branch,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Entry is one timestamped contribution to a thread.
type Entry struct {
	// ID uniquely identifies the entry across every copy of the
	// document. Assigned once at creation, never rewritten.
	ID string

	// Time is the entry's creation timestamp (UTC).
	Time time.Time

	// Author is the agent or person who wrote the entry.
	Author string

	// Body is the entry text, without the heading line.
	Body string
}

// Document is a parsed thread file.
type Document struct {
	Header  Header
	Entries []Entry
}

const frontmatterDelim = "---"

// entryHeading matches "## [id] RFC3339 author".
var entryHeading = regexp.MustCompile(`^## \[([^\]]+)\] (\S+)(?: (.*))?$`)

// Parse decodes a thread document from its file content.
func Parse(data []byte) (*Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return nil, fmt.Errorf("thread document missing frontmatter header")
	}

	// Find the closing delimiter
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("thread document frontmatter not terminated")
	}

	doc := &Document{}
	headerYAML := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(headerYAML), &doc.Header); err != nil {
		return nil, fmt.Errorf("failed to parse thread header: %w", err)
	}

	// Parse entries
	var current *Entry
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		doc.Entries = append(doc.Entries, *current)
		current = nil
		body = nil
	}

	for _, line := range lines[end+1:] {
		if m := entryHeading.FindStringSubmatch(line); m != nil {
			flush()
			ts, err := time.Parse(time.RFC3339, m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid entry timestamp %q: %w", m[2], err)
			}
			current = &Entry{ID: m[1], Time: ts, Author: strings.TrimSpace(m[3])}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	return doc, nil
}

// Render encodes the document back to file content. The header is
// emitted from the struct, so a render after merge reflects the winning
// values.
func (d *Document) Render() ([]byte, error) {
	headerYAML, err := yaml.Marshal(&d.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thread header: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(frontmatterDelim + "\n")
	sb.Write(headerYAML)
	sb.WriteString(frontmatterDelim + "\n")

	for _, e := range d.Entries {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("## [%s] %s %s\n", e.ID, e.Time.UTC().Format(time.RFC3339), e.Author))
		if e.Body != "" {
			sb.WriteString("\n")
			sb.WriteString(e.Body)
			sb.WriteString("\n")
		}
	}

	return []byte(sb.String()), nil
}

// New creates a fresh open thread for a topic.
func New(topic, branch, ball string, now time.Time) *Document {
	now = now.UTC()
	return &Document{
		Header: Header{
			Topic:     topic,
			Status:    StatusOpen,
			Ball:      ball,
			Branch:    branch,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Append adds a new entry with a freshly assigned id and bumps the
// header's updated_at. Returns the assigned id.
func (d *Document) Append(author, body string, now time.Time) string {
	now = now.UTC()
	id := "e-" + uuid.NewString()[:8]
	d.Entries = append(d.Entries, Entry{
		ID:     id,
		Time:   now,
		Author: author,
		Body:   strings.TrimSpace(body),
	})
	d.Header.UpdatedAt = now
	return id
}

// SetStatus updates the thread status and updated_at.
func (d *Document) SetStatus(status string, now time.Time) {
	d.Header.Status = status
	d.Header.UpdatedAt = now.UTC()
}

// sortEntries orders entries chronologically, breaking timestamp ties
// by id so the order is total and merge output deterministic.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Time.Equal(entries[j].Time) {
			return entries[i].Time.Before(entries[j].Time)
		}
		return entries[i].ID < entries[j].ID
	})
}
