// Package queuetest provides in-memory implementations of the queue store
// and waiting index for tests that exercise correctness properties (double
// matching, gate enforcement, crash reconciliation) without Postgres or
// Redis. Failure injection knobs simulate partial writes between the two
// systems.
package queuetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pairup/match-engine/internal/queue"
)

// MemStore is an in-memory queue.EntryStore. One entry per user: terminal
// transitions overwrite the status in place, which is enough for the
// engine's lifecycle (a user re-joining after a terminal state replaces the
// record).
type MemStore struct {
	mu      sync.Mutex
	entries map[string]*queue.WaitingEntry
	matches []*queue.MatchAttempt

	// FailCommit, when set, makes CommitMatch return the error without
	// changing anything.
	FailCommit error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]*queue.WaitingEntry)}
}

func (s *MemStore) InsertWaiting(_ context.Context, e *queue.WaitingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[e.UserID]; ok && cur.Status == queue.StatusWaiting {
		return queue.ErrAlreadyQueued
	}
	cp := *e
	cp.Status = queue.StatusWaiting
	s.entries[e.UserID] = &cp
	return nil
}

func (s *MemStore) GetWaiting(_ context.Context, userID string) (*queue.WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || e.Status != queue.StatusWaiting {
		return nil, queue.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemStore) MarkRemoved(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || e.Status != queue.StatusWaiting {
		return false, nil
	}
	e.Status = queue.StatusRemoved
	return true, nil
}

func (s *MemStore) CommitMatch(_ context.Context, m *queue.MatchAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCommit != nil {
		return s.FailCommit
	}
	for _, id := range []string{m.User1ID, m.User2ID} {
		e, ok := s.entries[id]
		if !ok || e.Status != queue.StatusWaiting {
			return queue.ErrNotWaiting
		}
	}
	s.entries[m.User1ID].Status = queue.StatusMatched
	s.entries[m.User2ID].Status = queue.StatusMatched
	cp := *m
	s.matches = append(s.matches, &cp)
	return nil
}

func (s *MemStore) ExpireBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.entries {
		if e.Status == queue.StatusWaiting && e.ExpiresAt.Before(cutoff) {
			e.Status = queue.StatusExpired
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemStore) IncrementAttempts(_ context.Context, userIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		if e, ok := s.entries[id]; ok && e.Status == queue.StatusWaiting {
			e.Attempts++
			t := at
			e.LastMatchAttempt = &t
		}
	}
	return nil
}

func (s *MemStore) CountWaitingByIntent(_ context.Context) (map[queue.Intent]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[queue.Intent]int)
	for _, e := range s.entries {
		if e.Status == queue.StatusWaiting {
			counts[e.Intent]++
		}
	}
	return counts, nil
}

func (s *MemStore) CountWaitingByGender(_ context.Context) (map[queue.Gender]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[queue.Gender]int)
	for _, e := range s.entries {
		if e.Status == queue.StatusWaiting {
			counts[e.Gender]++
		}
	}
	return counts, nil
}

func (s *MemStore) MatchesSince(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.matches {
		if !m.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// Matches returns a snapshot of all committed match attempts.
func (s *MemStore) Matches() []*queue.MatchAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*queue.MatchAttempt, len(s.matches))
	copy(out, s.matches)
	return out
}

// Entry returns the stored entry for a user, nil when absent.
func (s *MemStore) Entry(userID string) *queue.WaitingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// MemIndex is an in-memory queue.WaitingIndex.
type MemIndex struct {
	mu      sync.Mutex
	members map[string]int64 // userID -> enqueue ms

	// FailAdd / FailRemove, when set, make the corresponding call fail
	// without mutating the index. Used to simulate a crash between the
	// durable write and the index write.
	FailAdd    error
	FailRemove error
}

// NewMemIndex returns an empty index.
func NewMemIndex() *MemIndex {
	return &MemIndex{members: make(map[string]int64)}
}

func (i *MemIndex) Add(_ context.Context, userID string, enteredAt time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.FailAdd != nil {
		return i.FailAdd
	}
	i.members[userID] = enteredAt.UnixMilli()
	return nil
}

func (i *MemIndex) Remove(_ context.Context, userIDs ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.FailRemove != nil {
		return i.FailRemove
	}
	for _, id := range userIDs {
		delete(i.members, id)
	}
	return nil
}

func (i *MemIndex) Rank(_ context.Context, userID string) (int64, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	score, ok := i.members[userID]
	if !ok {
		return 0, false, nil
	}
	var rank int64
	for id, s := range i.members {
		if s < score || (s == score && id < userID) {
			rank++
		}
	}
	return rank, true, nil
}

func (i *MemIndex) Size(_ context.Context) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return int64(len(i.members)), nil
}

func (i *MemIndex) Oldest(_ context.Context, n int64) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	type member struct {
		id    string
		score int64
	}
	all := make([]member, 0, len(i.members))
	for id, s := range i.members {
		all = append(all, member{id, s})
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score < all[b].score
		}
		return all[a].id < all[b].id
	})
	if n > int64(len(all)) {
		n = int64(len(all))
	}
	ids := make([]string, 0, n)
	for _, m := range all[:n] {
		ids = append(ids, m.id)
	}
	return ids, nil
}

// Contains reports membership, for assertions.
func (i *MemIndex) Contains(userID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.members[userID]
	return ok
}
