package queue

import "errors"

var (
	// ErrAlreadyQueued is returned by Join when the user already has a
	// WAITING entry. Callers surface it; it is never retried automatically.
	ErrAlreadyQueued = errors.New("queue: user already queued")

	// ErrNotFound is returned when no WAITING entry exists for a user.
	// Leave treats it as a benign no-op; Status reports an empty result.
	ErrNotFound = errors.New("queue: waiting entry not found")

	// ErrNotWaiting is returned by CommitMatch when one of the two users is
	// no longer WAITING (left or was matched earlier in the same cycle).
	// The commit is rolled back and neither row changes.
	ErrNotWaiting = errors.New("queue: entry no longer waiting")

	// ErrRateLimited is returned by Join when the user exceeded the join
	// rate limit window.
	ErrRateLimited = errors.New("queue: join rate limit exceeded")
)
