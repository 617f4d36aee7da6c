// Package audit provides a tamper-evident, hash-chained log of arbitration
// events: state transitions, verdicts, waivers, and appeal decisions.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/tribune/pkg/canonicalize"
)

// Clock provides authority time, injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Entry is one tamper-evident log record. PreviousHash links each entry to
// the preceding one; Hash covers the entry including PreviousHash.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Target       string    `json:"target"`
	Details      string    `json:"details,omitempty"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
}

// Log manages an append-only sequence of entries.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	clock   Clock
}

// NewLog creates an empty log. If clock is nil the wall clock is used.
func NewLog(clock ...Clock) *Log {
	c := Clock(wallClock{})
	if len(clock) > 0 && clock[0] != nil {
		c = clock[0]
	}
	return &Log{clock: c}
}

// Append adds a new entry, linking it to the previous one.
func (l *Log) Append(actor, action, target, details string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := ""
	if len(l.entries) > 0 {
		prevHash = l.entries[len(l.entries)-1].Hash
	}

	entry := Entry{
		ID:           "evt-" + uuid.New().String(),
		Timestamp:    l.clock.Now().UTC(),
		Actor:        actor,
		Action:       action,
		Target:       target,
		Details:      details,
		PreviousHash: prevHash,
	}

	hash, err := computeEntryHash(&entry)
	if err != nil {
		return nil, err
	}
	entry.Hash = hash

	l.entries = append(l.entries, entry)
	return &entry, nil
}

// Entries returns a snapshot copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// VerifyChain checks the integrity of the log: each entry's PreviousHash
// must match the preceding entry's Hash, and each Hash must match the
// entry's content.
func (l *Log) VerifyChain() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		entry := l.entries[i]
		if i > 0 {
			if entry.PreviousHash != l.entries[i-1].Hash {
				return false, fmt.Errorf("chain broken at index %d: previous hash mismatch", i)
			}
		} else if entry.PreviousHash != "" {
			return false, fmt.Errorf("genesis entry has non-empty previous hash")
		}

		expected, err := computeEntryHash(&entry)
		if err != nil {
			return false, err
		}
		if entry.Hash != expected {
			return false, fmt.Errorf("entry %d content hash mismatch", i)
		}
	}
	return true, nil
}

// computeEntryHash hashes the canonical form of the entry with the Hash
// field zeroed.
func computeEntryHash(e *Entry) (string, error) {
	stripped := *e
	stripped.Hash = ""
	return canonicalize.CanonicalHash(stripped)
}
