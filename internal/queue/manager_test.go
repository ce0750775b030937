package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pairup/match-engine/internal/queue"
	"github.com/pairup/match-engine/internal/queue/queuetest"
)

func newManager(t *testing.T) (*queue.Manager, *queuetest.MemStore, *queuetest.MemIndex) {
	t.Helper()
	store := queuetest.NewMemStore()
	index := queuetest.NewMemIndex()
	return queue.NewManager(store, index, nil, queue.ManagerConfig{}), store, index
}

func join(t *testing.T, m *queue.Manager, userID string) {
	t.Helper()
	err := m.Join(context.Background(), queue.JoinRequest{
		UserID:    userID,
		Intent:    queue.IntentSerious,
		Gender:    queue.GenderFemale,
		Languages: []string{"english"},
	})
	if err != nil {
		t.Fatalf("join %s: %v", userID, err)
	}
}

func TestManager_JoinCreatesWaitingEntry(t *testing.T) {
	m, store, index := newManager(t)
	join(t, m, "alice")

	e := store.Entry("alice")
	if e == nil || e.Status != queue.StatusWaiting {
		t.Fatalf("expected WAITING entry, got %+v", e)
	}
	if e.ExpiresAt.Sub(e.EnteredAt) != queue.DefaultEntryTTL {
		t.Errorf("TTL = %s, want %s", e.ExpiresAt.Sub(e.EnteredAt), queue.DefaultEntryTTL)
	}
	if !index.Contains("alice") {
		t.Error("joined user missing from index")
	}
}

func TestManager_JoinWhileWaitingReturnsAlreadyQueued(t *testing.T) {
	m, _, index := newManager(t)
	join(t, m, "alice")

	err := m.Join(context.Background(), queue.JoinRequest{
		UserID: "alice",
		Intent: queue.IntentSerious,
		Gender: queue.GenderFemale,
	})
	if !errors.Is(err, queue.ErrAlreadyQueued) {
		t.Fatalf("second join: got %v, want ErrAlreadyQueued", err)
	}

	// Exactly one queue entry survives the duplicate join.
	size, err := index.Size(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if size != 1 {
		t.Errorf("index size = %d, want 1", size)
	}
}

func TestManager_JoinValidatesRequest(t *testing.T) {
	m, _, _ := newManager(t)

	if err := m.Join(context.Background(), queue.JoinRequest{Intent: queue.IntentCasual}); err == nil {
		t.Error("expected error for empty user id")
	}
	if err := m.Join(context.Background(), queue.JoinRequest{UserID: "alice"}); err == nil {
		t.Error("expected error for empty intent")
	}
}

func TestManager_JoinRollsBackStoreOnIndexFailure(t *testing.T) {
	m, store, index := newManager(t)
	index.FailAdd = context.DeadlineExceeded

	err := m.Join(context.Background(), queue.JoinRequest{
		UserID: "alice",
		Intent: queue.IntentSerious,
		Gender: queue.GenderFemale,
	})
	if err == nil {
		t.Fatal("expected join to fail when the index write fails")
	}

	// No partial state: the durable row was rolled back, so the user can
	// join again once the index recovers.
	if _, err := store.GetWaiting(context.Background(), "alice"); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("expected no WAITING row after rollback, got %v", err)
	}

	index.FailAdd = nil
	join(t, m, "alice")
}

func TestManager_LeaveIsIdempotent(t *testing.T) {
	m, store, index := newManager(t)
	join(t, m, "alice")

	for i := 0; i < 2; i++ {
		if err := m.Leave(context.Background(), "alice"); err != nil {
			t.Fatalf("leave #%d: %v", i+1, err)
		}
	}
	if err := m.Leave(context.Background(), "never-joined"); err != nil {
		t.Errorf("leave of unknown user: got %v, want nil", err)
	}

	if e := store.Entry("alice"); e.Status != queue.StatusRemoved {
		t.Errorf("status = %s, want REMOVED", e.Status)
	}
	if index.Contains("alice") {
		t.Error("left user still indexed")
	}
}

func TestManager_RejoinAfterLeave(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	join(t, m, "alice")
	if err := m.Leave(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	st, err := m.Status(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.InQueue {
		t.Fatal("user reported in queue after leaving")
	}

	// A fresh join replaces the terminal entry with a new WAITING one.
	join(t, m, "alice")
	if e := store.Entry("alice"); e.Status != queue.StatusWaiting {
		t.Errorf("status after rejoin = %s, want WAITING", e.Status)
	}
	st, err = m.Status(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !st.InQueue || st.Position != 1 {
		t.Errorf("status after rejoin = %+v, want position 1", st)
	}
}

func TestManager_StatusReportsFIFOPosition(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	// Lexicographic IDs match join order so same-millisecond joins still
	// rank deterministically.
	for _, id := range []string{"a", "b", "c"} {
		join(t, m, id)
	}

	for want, id := range map[int64]string{1: "a", 2: "b", 3: "c"} {
		st, err := m.Status(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !st.InQueue {
			t.Fatalf("%s not in queue", id)
		}
		if st.Position != want {
			t.Errorf("%s position = %d, want %d", id, st.Position, want)
		}
		if st.TotalWaiting != 3 {
			t.Errorf("%s total = %d, want 3", id, st.TotalWaiting)
		}
		if st.EnteredAt == nil {
			t.Errorf("%s missing entered_at", id)
		}
	}
}

func TestManager_StatusForUnknownUser(t *testing.T) {
	m, _, _ := newManager(t)
	join(t, m, "alice")

	st, err := m.Status(context.Background(), "stranger")
	if err != nil {
		t.Fatal(err)
	}
	if st.InQueue {
		t.Error("unknown user reported in queue")
	}
	if st.TotalWaiting != 1 {
		t.Errorf("total = %d, want 1", st.TotalWaiting)
	}
}

func TestManager_StatusHealsStaleIndexEntry(t *testing.T) {
	m, store, index := newManager(t)
	ctx := context.Background()
	join(t, m, "alice")
	join(t, m, "bob")

	// Simulate a crash after the match commit but before the index removal:
	// both rows go MATCHED while the index keeps listing them.
	err := store.CommitMatch(ctx, &queue.MatchAttempt{
		ID:      uuid.New().String(),
		User1ID: "alice",
		User2ID: "bob",
		Status:  queue.MatchProposed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !index.Contains("alice") {
		t.Fatal("test premise broken: index entry should linger")
	}

	st, err := m.Status(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.InQueue {
		t.Error("matched user reported in queue")
	}
	if index.Contains("alice") {
		t.Error("stale index entry not healed by status lookup")
	}
	if st.TotalWaiting != 1 {
		t.Errorf("total = %d, want 1 (only bob's stale entry left)", st.TotalWaiting)
	}
}

func TestManager_StatusHealsUnindexedWaitingEntry(t *testing.T) {
	m, store, index := newManager(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A WAITING row with no index entry: the aftermath of an index flush.
	err := store.InsertWaiting(ctx, &queue.WaitingEntry{
		UserID:    "alice",
		Intent:    queue.IntentSerious,
		Gender:    queue.GenderFemale,
		Status:    queue.StatusWaiting,
		EnteredAt: now,
		ExpiresAt: now.Add(queue.DefaultEntryTTL),
	})
	if err != nil {
		t.Fatal(err)
	}

	st, err := m.Status(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !st.InQueue || st.Position != 1 {
		t.Errorf("status = %+v, want in queue at position 1", st)
	}
	if !index.Contains("alice") {
		t.Error("waiting user not re-indexed by status lookup")
	}
}

func TestManager_Stats(t *testing.T) {
	m, store, _ := newManager(t)
	ctx := context.Background()

	seed := []struct {
		id     string
		intent queue.Intent
		gender queue.Gender
	}{
		{"a", queue.IntentSerious, queue.GenderFemale},
		{"b", queue.IntentSerious, queue.GenderMale},
		{"c", queue.IntentCasual, queue.GenderFemale},
	}
	for _, s := range seed {
		err := m.Join(ctx, queue.JoinRequest{UserID: s.id, Intent: s.intent, Gender: s.gender})
		if err != nil {
			t.Fatal(err)
		}
	}
	err := store.CommitMatch(ctx, &queue.MatchAttempt{
		ID:        uuid.New().String(),
		User1ID:   "a",
		User2ID:   "b",
		Status:    queue.MatchProposed,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalWaiting != 1 {
		t.Errorf("total waiting = %d, want 1", stats.TotalWaiting)
	}
	if stats.ByIntent[queue.IntentCasual] != 1 || stats.ByIntent[queue.IntentSerious] != 0 {
		t.Errorf("by intent = %v", stats.ByIntent)
	}
	if stats.ByGender[queue.GenderFemale] != 1 {
		t.Errorf("by gender = %v", stats.ByGender)
	}
	if stats.MatchesLast24h != 1 {
		t.Errorf("matches last 24h = %d, want 1", stats.MatchesLast24h)
	}
}
