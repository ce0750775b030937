// Package scheduler runs the periodic matching cycle: pull a batch from the
// waiting index, hydrate entries and preferences, partition and score them,
// commit mutually acceptable pairs, and sweep expirations. One cycle runs at
// a time; a tick that fires while a cycle is in flight is skipped, not
// queued.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pairup/match-engine/internal/events"
	"github.com/pairup/match-engine/internal/metrics"
	"github.com/pairup/match-engine/internal/profile"
	"github.com/pairup/match-engine/internal/queue"
	"github.com/pairup/match-engine/internal/scoring"
)

// Publisher emits match.created events. *events.Client satisfies it; tests
// substitute a recorder.
type Publisher interface {
	PublishMatchCreated(ev events.MatchCreatedEvent) error
}

// Config holds the cycle tunables.
type Config struct {
	// Interval between cycle ticks.
	Interval time.Duration
	// BatchSize is the number of oldest waiting users read per cycle.
	BatchSize int64
	// ScoreThreshold is the minimum blended score for a proposal.
	ScoreThreshold float64
	// SoftDeadline aborts remaining scans when a cycle runs long. Zero
	// means twice the interval.
	SoftDeadline time.Duration
	// PriorityGenders is the configured fairness policy: the gender classes
	// scanned first within each intent group, in order. Classes not listed
	// follow in plain FIFO order. This is a product decision carried in
	// config, never hard-coded.
	PriorityGenders []queue.Gender
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = 0.4
	}
	if c.SoftDeadline <= 0 {
		c.SoftDeadline = 2 * c.Interval
	}
	return c
}

// candidate is one hydrated waiting user within a cycle.
type candidate struct {
	entry *queue.WaitingEntry
	prefs *profile.Preferences
}

// Scheduler drives the matching cycles.
type Scheduler struct {
	store    queue.EntryStore
	index    queue.WaitingIndex
	profiles profile.Source
	scorer   *scoring.Scorer
	pub      Publisher
	cfg      Config

	// inFlight is the single-flight guard: owned here, part of the
	// scheduler's state machine rather than a free-floating global.
	inFlight atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. pub may be nil (events disabled, e.g. in tests).
func New(store queue.EntryStore, index queue.WaitingIndex, profiles profile.Source, scorer *scoring.Scorer, pub Publisher, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		index:    index,
		profiles: profiles,
		scorer:   scorer,
		pub:      pub,
		cfg:      cfg.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the cycle loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	log.Printf("[matcher] scheduler started (interval=%s batch=%d threshold=%.2f)",
		s.cfg.Interval, s.cfg.BatchSize, s.cfg.ScoreThreshold)
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("[matcher] scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.inFlight.CompareAndSwap(false, true) {
				metrics.CyclesSkipped.Inc()
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.inFlight.Store(false)
				s.RunCycle(s.ctx)
			}()
		}
	}
}

// RunCycle executes one full matching cycle. Exported so tests (and one-shot
// tooling) can drive cycles without the ticker. Per-user failures are logged
// and skipped; the cycle always finishes its sweep.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithDeadline(ctx, start.Add(s.cfg.SoftDeadline))
	defer cancel()

	now := start.UTC()

	ids, err := s.index.Oldest(ctx, s.cfg.BatchSize)
	if err != nil {
		log.Printf("[matcher] cycle select: %v", err)
		s.sweep(ctx, now)
		return
	}

	groups := groupByIntent(s.hydrate(ctx, ids, now))

	// Deterministic group order so behavior is reproducible under test.
	intents := make([]queue.Intent, 0, len(groups))
	for intent := range groups {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	var unmatched []string
	for _, intent := range intents {
		ordered := orderByGenderPriority(groups[intent], s.cfg.PriorityGenders)
		unmatched = append(unmatched, s.scanGroup(ctx, ordered, now)...)
	}

	if err := s.store.IncrementAttempts(ctx, unmatched, now); err != nil {
		log.Printf("[matcher] track attempts: %v", err)
	}

	s.sweep(ctx, now)

	if size, err := s.index.Size(ctx); err == nil {
		metrics.QueueSize.Set(float64(size))
	}
}

// hydrate loads entries and preferences for the selected batch, dropping
// stale index entries (user no longer WAITING) lazily as it goes.
func (s *Scheduler) hydrate(ctx context.Context, ids []string, now time.Time) []*candidate {
	cands := make([]*candidate, 0, len(ids))
	for _, id := range ids {
		entry, err := s.store.GetWaiting(ctx, id)
		if errors.Is(err, queue.ErrNotFound) {
			// Index and store disagree; treat the indexed entry as stale.
			log.Printf("[matcher] inconsistent: %s indexed but not WAITING, removing", id)
			if remErr := s.index.Remove(ctx, id); remErr != nil {
				log.Printf("[matcher] stale remove %s: %v", id, remErr)
			}
			continue
		}
		if err != nil {
			log.Printf("[matcher] hydrate %s: %v", id, err)
			continue
		}
		if entry.Expired(now) {
			continue // the sweep handles it this cycle
		}

		prefs, err := s.profiles.Preferences(ctx, id)
		if err != nil {
			log.Printf("[matcher] preferences %s: %v (using defaults)", id, err)
			prefs = profile.Defaults(id)
		}
		cands = append(cands, &candidate{entry: entry, prefs: prefs})
	}
	return cands
}

// scanGroup walks one intent group in priority order, proposing for each
// still-waiting user the highest-scoring remaining candidate above the
// threshold that passes both gates. Returns the users scanned but left
// unmatched.
func (s *Scheduler) scanGroup(ctx context.Context, ordered []*candidate, now time.Time) []string {
	consumed := make(map[string]bool, len(ordered))
	var unmatched []string

	for i, u := range ordered {
		select {
		case <-ctx.Done():
			log.Printf("[matcher] cycle soft deadline hit, %d scans deferred", len(ordered)-i)
			return unmatched
		default:
		}

		userID := u.entry.UserID
		if consumed[userID] {
			continue
		}

		// Re-check immediately before use: the user may have left or been
		// matched by an earlier commit in this same cycle.
		if _, err := s.store.GetWaiting(ctx, userID); err != nil {
			if !errors.Is(err, queue.ErrNotFound) {
				log.Printf("[matcher] recheck %s: %v", userID, err)
			}
			continue
		}

		var (
			best      *candidate
			bestScore scoring.Score
		)
		for _, v := range ordered[i+1:] {
			if consumed[v.entry.UserID] {
				continue
			}
			sc := s.scorer.ScorePair(u.entry, u.prefs, v.entry, v.prefs)
			if !sc.Matchable() {
				continue
			}
			if sc.Total < s.cfg.ScoreThreshold {
				continue
			}
			if best == nil || sc.Total > bestScore.Total {
				best, bestScore = v, sc
			}
		}

		if best == nil {
			unmatched = append(unmatched, userID)
			continue
		}

		if s.commit(ctx, u, best, bestScore, now) {
			consumed[userID] = true
			consumed[best.entry.UserID] = true
		} else {
			// Both stay WAITING and are retried next cycle.
			unmatched = append(unmatched, userID)
		}
	}
	return unmatched
}

// commit transactionally records the match in the durable store first, then
// clears the index. A crash between the two writes leaves index entries
// pointing at MATCHED rows, which hydrate/Status remove lazily.
func (s *Scheduler) commit(ctx context.Context, u, v *candidate, sc scoring.Score, now time.Time) bool {
	breakdown, err := json.Marshal(sc)
	if err != nil {
		log.Printf("[matcher] marshal breakdown: %v", err)
		return false
	}

	attempt := &queue.MatchAttempt{
		ID:               uuid.New().String(),
		User1ID:          u.entry.UserID,
		User2ID:          v.entry.UserID,
		Score:            sc.Total,
		Breakdown:        breakdown,
		Status:           queue.MatchProposed,
		AlgorithmVersion: scoring.AlgorithmVersion,
		CreatedAt:        now,
	}

	if err := s.store.CommitMatch(ctx, attempt); err != nil {
		if errors.Is(err, queue.ErrNotWaiting) {
			log.Printf("[matcher] commit %s/%s: lost race, retrying next cycle",
				attempt.User1ID, attempt.User2ID)
		} else {
			log.Printf("[matcher] commit %s/%s: %v", attempt.User1ID, attempt.User2ID, err)
		}
		return false
	}

	if err := s.index.Remove(ctx, attempt.User1ID, attempt.User2ID); err != nil {
		log.Printf("[matcher] index remove %s/%s: %v (will self-heal)",
			attempt.User1ID, attempt.User2ID, err)
	}

	metrics.MatchesTotal.Inc()
	metrics.MatchScore.Observe(sc.Total)

	if s.pub != nil {
		ev := events.MatchCreatedEvent{
			User1ID:   attempt.User1ID,
			User2ID:   attempt.User2ID,
			MatchID:   attempt.ID,
			Score:     attempt.Score,
			CreatedAt: attempt.CreatedAt,
		}
		if err := s.pub.PublishMatchCreated(ev); err != nil {
			// At-least-once is best effort here; the durable record exists
			// and downstream reconciliation reads it.
			log.Printf("[matcher] publish %s: %v", attempt.ID, err)
		}
	}
	return true
}

// sweep expires overdue WAITING entries and clears them from the index.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	expired, err := s.store.ExpireBefore(ctx, now)
	if err != nil {
		log.Printf("[matcher] sweep: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	if err := s.index.Remove(ctx, expired...); err != nil {
		log.Printf("[matcher] sweep index remove: %v", err)
	}
	metrics.ExpiredTotal.Add(float64(len(expired)))
	log.Printf("[matcher] sweep: expired %d entries", len(expired))
}
