package parity

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mschirtzinger/tether/internal/lock"
)

// TopicHealth is one topic's row in the health report.
type TopicHealth struct {
	Topic      string
	Status     Status
	UpdatedAt  time.Time
	LastError  string
	LockHolder string
	Locked     bool
}

// HealthReport aggregates persisted parity state and live lock files
// across topics. Produced read-only; building a report never mutates
// either repository.
type HealthReport struct {
	Topics []TopicHealth

	Synced     int
	Dirty      int
	Drifted    int
	Conflicted int
	Failed     int
	Locked     int

	// LastSync is the most recent successful sync across all topics,
	// zero when none has succeeded yet.
	LastSync time.Time
}

// Health aggregates parity state and lock files into an operator
// report.
func (c *Coordinator) Health() (*HealthReport, error) {
	states, err := c.store.List()
	if err != nil {
		return nil, err
	}

	locks := c.scanLocks()

	report := &HealthReport{}
	for topic, state := range states {
		row := TopicHealth{
			Topic:     topic,
			Status:    state.Status,
			UpdatedAt: state.UpdatedAt,
			LastError: state.LastError,
		}
		if info, held := locks[topic]; held {
			row.Locked = true
			row.LockHolder = info.Contents
			delete(locks, topic)
		}
		report.Topics = append(report.Topics, row)

		switch state.Status {
		case StatusSynced:
			report.Synced++
			if state.UpdatedAt.After(report.LastSync) {
				report.LastSync = state.UpdatedAt
			}
		case StatusDrift:
			report.Drifted++
		case StatusConflict:
			report.Conflicted++
		case StatusDirty:
			report.Dirty++
		case StatusFailed:
			report.Failed++
		}
	}

	// Locks without parity state still count as held topics.
	for topic, info := range locks {
		report.Topics = append(report.Topics, TopicHealth{
			Topic:      topic,
			Locked:     true,
			LockHolder: info.Contents,
		})
	}

	sort.Slice(report.Topics, func(i, j int) bool {
		return report.Topics[i].Topic < report.Topics[j].Topic
	})

	for _, row := range report.Topics {
		if row.Locked {
			report.Locked++
		}
	}

	return report, nil
}

// scanLocks finds live (non-stale) lock files in the threads
// directory, keyed by topic.
func (c *Coordinator) scanLocks() map[string]lock.Info {
	found := map[string]lock.Info{}

	entries, err := os.ReadDir(c.threads.Path())
	if err != nil {
		return found
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".lock") {
			continue
		}
		topic := strings.TrimSuffix(strings.TrimPrefix(name, "."), ".lock")
		if topic == "" {
			continue
		}

		info, err := lock.Inspect(filepath.Join(c.threads.Path(), name), c.cfg.Lock.TTL)
		if err != nil || !info.Exists || info.Stale {
			continue
		}
		found[topic] = info
	}

	return found
}
