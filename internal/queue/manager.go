package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pairup/match-engine/internal/ratelimit"
)

// DefaultEntryTTL is how long a waiting entry lives before the sweep expires
// it, unless configured otherwise.
const DefaultEntryTTL = 10 * time.Minute

// JoinRequest carries everything a user supplies when entering the queue.
// Optional fields are pointers / empty values, matching WaitingEntry.
type JoinRequest struct {
	UserID    string   `json:"user_id"`
	Intent    Intent   `json:"intent"`
	Gender    Gender   `json:"gender"`
	Age       *int     `json:"age,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Ethnicity string   `json:"ethnicity,omitempty"`
}

// Manager implements the synchronous queue operations (Join, Leave, Status,
// Stats) over the durable store and the waiting index.
//
// Write ordering: the store is always touched first, the index second. A
// failure between the two leaves a state the next touch or sweep reconciles;
// no caller ever observes a partial join.
type Manager struct {
	store   EntryStore
	index   WaitingIndex
	limiter *ratelimit.Limiter // nil disables join throttling
	rule    ratelimit.Rule
	ttl     time.Duration
}

// ManagerConfig tunes the join path. Zero values fall back to
// DefaultEntryTTL and ratelimit.RuleJoin.
type ManagerConfig struct {
	EntryTTL time.Duration
	JoinRule ratelimit.Rule
}

// NewManager creates a queue manager. limiter may be nil (join throttling
// disabled).
func NewManager(store EntryStore, index WaitingIndex, limiter *ratelimit.Limiter, cfg ManagerConfig) *Manager {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = DefaultEntryTTL
	}
	if cfg.JoinRule.Limit <= 0 {
		cfg.JoinRule = ratelimit.RuleJoin
	}
	return &Manager{
		store:   store,
		index:   index,
		limiter: limiter,
		rule:    cfg.JoinRule,
		ttl:     cfg.EntryTTL,
	}
}

// Join inserts the user into the queue. Returns ErrAlreadyQueued when a
// WAITING entry already exists, ErrRateLimited when the join window is
// exhausted. On any failure no partial state is left behind: the durable row
// is created first and rolled back if the index write fails.
func (m *Manager) Join(ctx context.Context, req JoinRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("queue: join: empty user id")
	}
	if req.Intent == "" {
		return fmt.Errorf("queue: join: empty intent")
	}

	if m.limiter != nil {
		allowed, err := m.limiter.Allow(ctx, req.UserID, m.rule)
		if err == nil && !allowed {
			return ErrRateLimited
		}
		// Limiter errors fail open.
	}

	now := time.Now().UTC()
	entry := &WaitingEntry{
		UserID:    req.UserID,
		Intent:    req.Intent,
		Gender:    req.Gender,
		Age:       req.Age,
		Lat:       req.Lat,
		Lon:       req.Lon,
		Interests: req.Interests,
		Languages: req.Languages,
		Ethnicity: req.Ethnicity,
		Status:    StatusWaiting,
		EnteredAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.InsertWaiting(ctx, entry); err != nil {
		return err
	}

	if err := m.index.Add(ctx, req.UserID, now); err != nil {
		// Roll the durable row back so the failed join has no side effects.
		if _, rbErr := m.store.MarkRemoved(ctx, req.UserID); rbErr != nil {
			log.Printf("[queue] join rollback %s: %v", req.UserID, rbErr)
		}
		return fmt.Errorf("queue: join index add %s: %w", req.UserID, err)
	}
	return nil
}

// Leave removes the user from the queue. Leaving a user who is not waiting
// is a no-op success.
func (m *Manager) Leave(ctx context.Context, userID string) error {
	removed, err := m.store.MarkRemoved(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.index.Remove(ctx, userID); err != nil {
		if removed {
			// Row is REMOVED but the index entry lingers; Status and the
			// scheduler treat non-WAITING indexed users as stale and drop
			// them lazily.
			log.Printf("[queue] leave %s: index remove failed, will self-heal: %v", userID, err)
			return nil
		}
		return err
	}
	return nil
}

// Status reports the user's queue position by combining a store lookup with
// an index rank query. It also self-heals the two known divergence states:
// an indexed user whose row is no longer WAITING (stale, removed lazily) and
// a WAITING row missing from the index (re-added keyed by enqueue time).
func (m *Manager) Status(ctx context.Context, userID string) (QueueStatus, error) {
	total, err := m.index.Size(ctx)
	if err != nil {
		return QueueStatus{}, err
	}

	entry, err := m.store.GetWaiting(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		// Not waiting. If the index still lists the user the two systems
		// diverged (e.g. crash between match commit and index removal).
		if _, indexed, rankErr := m.index.Rank(ctx, userID); rankErr == nil && indexed {
			log.Printf("[queue] inconsistent: %s indexed but not WAITING, removing", userID)
			if remErr := m.index.Remove(ctx, userID); remErr != nil {
				log.Printf("[queue] self-heal remove %s: %v", userID, remErr)
			} else if total > 0 {
				total--
			}
		}
		return QueueStatus{InQueue: false, TotalWaiting: total}, nil
	}
	if err != nil {
		return QueueStatus{}, err
	}

	rank, indexed, err := m.index.Rank(ctx, userID)
	if err != nil {
		return QueueStatus{}, err
	}
	if !indexed {
		log.Printf("[queue] inconsistent: %s WAITING but unindexed, re-adding", userID)
		if addErr := m.index.Add(ctx, userID, entry.EnteredAt); addErr != nil {
			return QueueStatus{}, addErr
		}
		rank, _, err = m.index.Rank(ctx, userID)
		if err != nil {
			return QueueStatus{}, err
		}
		total++
	}

	entered := entry.EnteredAt
	return QueueStatus{
		InQueue:      true,
		Position:     rank + 1,
		TotalWaiting: total,
		EnteredAt:    &entered,
		Attempts:     entry.Attempts,
	}, nil
}

// Stats aggregates the WAITING population by intent and gender plus the
// trailing-24h match count.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	byIntent, err := m.store.CountWaitingByIntent(ctx)
	if err != nil {
		return Stats{}, err
	}
	byGender, err := m.store.CountWaitingByGender(ctx)
	if err != nil {
		return Stats{}, err
	}
	matches, err := m.store.MatchesSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return Stats{}, err
	}

	total := 0
	for _, n := range byIntent {
		total += n
	}
	return Stats{
		TotalWaiting:   total,
		ByIntent:       byIntent,
		ByGender:       byGender,
		MatchesLast24h: matches,
	}, nil
}
