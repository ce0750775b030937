package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyWaiting is the Redis sorted set of waiting user IDs.
// Score = enqueue timestamp in milliseconds, so ZRANGE gives FIFO order and
// ZRANK gives a user's queue position without a table scan.
const keyWaiting = "queue:waiting"

// Index is the Redis-backed WaitingIndex.
type Index struct {
	rdb *redis.Client
}

// NewIndex creates a waiting index backed by the given Redis client.
func NewIndex(rdb *redis.Client) *Index {
	return &Index{rdb: rdb}
}

// Add inserts the user into the waiting set keyed by enqueue time.
func (i *Index) Add(ctx context.Context, userID string, enteredAt time.Time) error {
	err := i.rdb.ZAdd(ctx, keyWaiting, redis.Z{
		Score:  float64(enteredAt.UnixMilli()),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: index add %s: %w", userID, err)
	}
	return nil
}

// Remove deletes the users from the waiting set. Absent members are ignored.
func (i *Index) Remove(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(userIDs))
	for n, id := range userIDs {
		members[n] = id
	}
	if err := i.rdb.ZRem(ctx, keyWaiting, members...).Err(); err != nil {
		return fmt.Errorf("queue: index remove: %w", err)
	}
	return nil
}

// Rank returns the user's 0-based enqueue-order position and whether the
// user is in the set.
func (i *Index) Rank(ctx context.Context, userID string) (int64, bool, error) {
	rank, err := i.rdb.ZRank(ctx, keyWaiting, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("queue: index rank %s: %w", userID, err)
	}
	return rank, true, nil
}

// Size returns the number of waiting users in the index.
func (i *Index) Size(ctx context.Context) (int64, error) {
	n, err := i.rdb.ZCard(ctx, keyWaiting).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: index size: %w", err)
	}
	return n, nil
}

// Oldest returns up to n user IDs, oldest enqueue time first.
func (i *Index) Oldest(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := i.rdb.ZRange(ctx, keyWaiting, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: index oldest: %w", err)
	}
	return ids, nil
}
