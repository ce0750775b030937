package queue

import (
	"context"
	"time"
)

// EntryStore is the durable record of waiting entries and match outcomes.
// The production implementation is Store (PostgreSQL); the scheduler and
// manager depend on this interface so correctness properties can be tested
// against in-memory fakes.
type EntryStore interface {
	// InsertWaiting creates a new WAITING entry. Returns ErrAlreadyQueued
	// if the user already has one.
	InsertWaiting(ctx context.Context, e *WaitingEntry) error

	// GetWaiting returns the user's WAITING entry, or ErrNotFound.
	GetWaiting(ctx context.Context, userID string) (*WaitingEntry, error)

	// MarkRemoved flips a WAITING entry to REMOVED. Returns false if the
	// user had no WAITING entry (benign for Leave).
	MarkRemoved(ctx context.Context, userID string) (bool, error)

	// CommitMatch atomically records the match attempt and transitions both
	// WAITING entries to MATCHED. Returns ErrNotWaiting (and changes
	// nothing) if either entry is no longer WAITING.
	CommitMatch(ctx context.Context, m *MatchAttempt) error

	// ExpireBefore transitions all WAITING entries with expires_at < cutoff
	// to EXPIRED and returns their user IDs.
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// IncrementAttempts bumps the attempt counter and last-scan time for
	// the given users' WAITING entries.
	IncrementAttempts(ctx context.Context, userIDs []string, at time.Time) error

	// CountWaitingByIntent and CountWaitingByGender aggregate the WAITING
	// population for Stats.
	CountWaitingByIntent(ctx context.Context) (map[Intent]int, error)
	CountWaitingByGender(ctx context.Context) (map[Gender]int, error)

	// MatchesSince counts match attempts created at or after the cutoff.
	MatchesSince(ctx context.Context, cutoff time.Time) (int, error)
}

// WaitingIndex is the fast ordered set of waiting user IDs, keyed by enqueue
// time. It determines scan order (oldest first) and powers rank queries; it
// is not a correctness guarantee on its own. Production implementation is
// Index (Redis ZSET).
type WaitingIndex interface {
	// Add inserts the user keyed by enqueue time.
	Add(ctx context.Context, userID string, enteredAt time.Time) error

	// Remove deletes the users from the index. Removing absent members is
	// a no-op.
	Remove(ctx context.Context, userIDs ...string) error

	// Rank returns the user's 0-based position in enqueue order, and
	// whether the user is present.
	Rank(ctx context.Context, userID string) (int64, bool, error)

	// Size returns the number of indexed users.
	Size(ctx context.Context) (int64, error)

	// Oldest returns up to n user IDs in enqueue order, oldest first.
	Oldest(ctx context.Context, n int64) ([]string, error)
}
