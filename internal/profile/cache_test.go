package profile

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingSource counts read-throughs and can be told to fail.
type countingSource struct {
	reads int
	fail  error
}

func (s *countingSource) Preferences(_ context.Context, userID string) (*Preferences, error) {
	s.reads++
	if s.fail != nil {
		return nil, s.fail
	}
	return &Preferences{UserID: userID, MinAge: 20}, nil
}

func TestCachedSource_ServesFromCacheWithinTTL(t *testing.T) {
	src := &countingSource{}
	c := NewCachedSource(src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p, err := c.Preferences(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if p.MinAge != 20 {
			t.Fatalf("unexpected prefs: %+v", p)
		}
	}
	if src.reads != 1 {
		t.Errorf("reads = %d, want 1 (cache hit after first)", src.reads)
	}

	// Different users are cached independently.
	if _, err := c.Preferences(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if src.reads != 2 {
		t.Errorf("reads = %d, want 2", src.reads)
	}
}

func TestCachedSource_ExpiredEntryReadsThrough(t *testing.T) {
	src := &countingSource{}
	c := NewCachedSource(src, time.Nanosecond)
	ctx := context.Background()

	c.Preferences(ctx, "alice")
	time.Sleep(time.Millisecond)
	c.Preferences(ctx, "alice")

	if src.reads != 2 {
		t.Errorf("reads = %d, want 2 after TTL expiry", src.reads)
	}
}

func TestCachedSource_DoesNotCacheErrors(t *testing.T) {
	src := &countingSource{fail: errors.New("profile service down")}
	c := NewCachedSource(src, time.Minute)
	ctx := context.Background()

	if _, err := c.Preferences(ctx, "alice"); err == nil {
		t.Fatal("expected error from failing source")
	}

	// Recovery is immediate: the failure was not cached.
	src.fail = nil
	p, err := c.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if p.UserID != "alice" {
		t.Errorf("prefs = %+v", p)
	}
	if src.reads != 2 {
		t.Errorf("reads = %d, want 2", src.reads)
	}
}

func TestCachedSource_Invalidate(t *testing.T) {
	src := &countingSource{}
	c := NewCachedSource(src, time.Minute)
	ctx := context.Background()

	c.Preferences(ctx, "alice")
	c.Invalidate("alice")
	c.Preferences(ctx, "alice")

	if src.reads != 2 {
		t.Errorf("reads = %d, want 2 after invalidation", src.reads)
	}
}
