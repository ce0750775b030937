// Package queue manages the store of users waiting to be matched: a durable
// PostgreSQL record of waiting entries and match outcomes, plus a Redis
// sorted-set index that keeps FIFO ordering and rank queries cheap. The two
// systems are kept consistent without a cross-system transaction; see the
// Manager and Scheduler for the reconciliation rules.
package queue

import "time"

// Intent is the kind of connection a user is queueing for. Users are only
// ever paired within the same intent.
type Intent string

const (
	IntentCasual     Intent = "CASUAL"
	IntentFriends    Intent = "FRIENDS"
	IntentSerious    Intent = "SERIOUS"
	IntentNetworking Intent = "NETWORKING"
)

// Gender is a user's stated gender class. An empty value means unknown.
type Gender string

const (
	GenderFemale    Gender = "female"
	GenderMale      Gender = "male"
	GenderNonbinary Gender = "nonbinary"
)

// Status is the lifecycle state of a waiting entry. An entry is WAITING from
// Join until exactly one terminal transition: MATCHED (paired by a cycle),
// REMOVED (explicit leave) or EXPIRED (TTL sweep).
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusMatched Status = "MATCHED"
	StatusRemoved Status = "REMOVED"
	StatusExpired Status = "EXPIRED"
)

// WaitingEntry is one user currently in the matching queue. Optional profile
// fields are pointers; nil means the user did not provide the value and the
// scorer falls back to that dimension's neutral default.
type WaitingEntry struct {
	UserID    string
	Intent    Intent
	Gender    Gender
	Age       *int
	Lat       *float64
	Lon       *float64
	Interests []string
	Languages []string
	Ethnicity string // empty = not stated
	Status    Status
	EnteredAt time.Time
	ExpiresAt time.Time

	// Attempts counts the matching cycles this entry has survived without
	// being paired. LastMatchAttempt is when it was last scanned.
	Attempts         int
	LastMatchAttempt *time.Time
}

// Expired reports whether the entry's TTL has passed at the given instant.
func (e *WaitingEntry) Expired(now time.Time) bool {
	return e.ExpiresAt.Before(now)
}

// MatchAttemptStatus is the lifecycle state of a proposed pairing. The engine
// only ever creates PROPOSED attempts; confirmation and rejection are
// terminal updates performed downstream.
type MatchAttemptStatus string

const (
	MatchProposed  MatchAttemptStatus = "PROPOSED"
	MatchConfirmed MatchAttemptStatus = "CONFIRMED"
	MatchRejected  MatchAttemptStatus = "REJECTED"
)

// MatchAttempt is a pairing of two users, created atomically with both
// waiting entries' transition to MATCHED. Immutable after creation except
// for the terminal status update owned downstream.
type MatchAttempt struct {
	ID               string // UUID, the downstream idempotency key
	User1ID          string
	User2ID          string
	Score            float64
	Breakdown        []byte // per-dimension sub-scores, stored as JSONB
	Status           MatchAttemptStatus
	AlgorithmVersion string
	CreatedAt        time.Time
}

// Stats is the aggregate view over the waiting queue returned by
// Manager.Stats.
type Stats struct {
	TotalWaiting   int            `json:"total_waiting"`
	ByIntent       map[Intent]int `json:"by_intent"`
	ByGender       map[Gender]int `json:"by_gender"`
	MatchesLast24h int            `json:"matches_last_24h"`
}

// QueueStatus is the per-user view returned by Manager.Status. Position is
// 1-based and only meaningful when InQueue is true.
type QueueStatus struct {
	InQueue      bool       `json:"in_queue"`
	Position     int64      `json:"position,omitempty"`
	TotalWaiting int64      `json:"total_waiting"`
	EnteredAt    *time.Time `json:"entered_at,omitempty"`
	Attempts     int        `json:"attempts,omitempty"`
}
