package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// index on (user_id) WHERE status = 'WAITING'. It is how Join's
// one-WAITING-entry-per-user invariant is enforced.
const uniqueViolation = "23505"

// Store is the PostgreSQL-backed EntryStore.
type Store struct {
	db *sql.DB
}

// NewStore creates an entry store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertWaiting creates a WAITING entry for the user. Returns
// ErrAlreadyQueued if a WAITING entry already exists.
func (s *Store) InsertWaiting(ctx context.Context, e *WaitingEntry) error {
	const query = `
		INSERT INTO waiting_entries
			(user_id, intent, gender, age, lat, lon, interests, languages,
			 ethnicity, status, entered_at, expires_at, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'WAITING', $10, $11, 0)`

	_, err := s.db.ExecContext(ctx, query,
		e.UserID, string(e.Intent), string(e.Gender),
		e.Age, e.Lat, e.Lon,
		pq.Array(e.Interests), pq.Array(e.Languages),
		nullString(e.Ethnicity),
		e.EnteredAt, e.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyQueued
		}
		return fmt.Errorf("queue: insert waiting: %w", err)
	}
	return nil
}

// GetWaiting returns the user's WAITING entry, or ErrNotFound.
func (s *Store) GetWaiting(ctx context.Context, userID string) (*WaitingEntry, error) {
	const query = `
		SELECT user_id, intent, gender, age, lat, lon, interests, languages,
		       ethnicity, status, entered_at, expires_at, attempts, last_match_attempt
		FROM waiting_entries
		WHERE user_id = $1 AND status = 'WAITING'`

	return s.scanEntry(s.db.QueryRowContext(ctx, query, userID))
}

func (s *Store) scanEntry(row *sql.Row) (*WaitingEntry, error) {
	var (
		e         WaitingEntry
		intent    string
		gender    string
		status    string
		ethnicity sql.NullString
		lastScan  sql.NullTime
	)
	err := row.Scan(
		&e.UserID, &intent, &gender, &e.Age, &e.Lat, &e.Lon,
		pq.Array(&e.Interests), pq.Array(&e.Languages),
		&ethnicity, &status, &e.EnteredAt, &e.ExpiresAt,
		&e.Attempts, &lastScan,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: scan entry: %w", err)
	}
	e.Intent = Intent(intent)
	e.Gender = Gender(gender)
	e.Status = Status(status)
	if ethnicity.Valid {
		e.Ethnicity = ethnicity.String
	}
	if lastScan.Valid {
		t := lastScan.Time
		e.LastMatchAttempt = &t
	}
	return &e, nil
}

// MarkRemoved flips the user's WAITING entry to REMOVED. Returns false when
// there was no WAITING entry to remove.
func (s *Store) MarkRemoved(ctx context.Context, userID string) (bool, error) {
	const query = `
		UPDATE waiting_entries
		SET status = 'REMOVED'
		WHERE user_id = $1 AND status = 'WAITING'`

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("queue: mark removed %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue: mark removed %s: %w", userID, err)
	}
	return n > 0, nil
}

// CommitMatch records the match attempt and transitions both users' WAITING
// entries to MATCHED in a single transaction. The WHERE status = 'WAITING'
// guard makes a conflicting commit (user left or matched meanwhile) fail
// cleanly with ErrNotWaiting and roll everything back.
func (s *Store) CommitMatch(ctx context.Context, m *MatchAttempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue: commit match begin: %w", err)
	}
	defer tx.Rollback()

	const transition = `
		UPDATE waiting_entries
		SET status = 'MATCHED'
		WHERE user_id = $1 AND status = 'WAITING'`

	for _, userID := range []string{m.User1ID, m.User2ID} {
		res, err := tx.ExecContext(ctx, transition, userID)
		if err != nil {
			return fmt.Errorf("queue: commit match transition %s: %w", userID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("queue: commit match transition %s: %w", userID, err)
		}
		if n == 0 {
			return ErrNotWaiting
		}
	}

	const insert = `
		INSERT INTO match_attempts
			(id, user1_id, user2_id, score, breakdown, status, algorithm_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.ExecContext(ctx, insert,
		m.ID, m.User1ID, m.User2ID, m.Score, m.Breakdown,
		string(m.Status), m.AlgorithmVersion, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("queue: commit match insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("queue: commit match: %w", err)
	}
	return nil
}

// ExpireBefore transitions WAITING entries with expires_at < cutoff to
// EXPIRED and returns their user IDs so the caller can clear the index.
func (s *Store) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `
		UPDATE waiting_entries
		SET status = 'EXPIRED'
		WHERE status = 'WAITING' AND expires_at < $1
		RETURNING user_id`

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("queue: expire before: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids, fmt.Errorf("queue: expire scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementAttempts bumps the attempt counter for users scanned but not
// matched in a cycle.
func (s *Store) IncrementAttempts(ctx context.Context, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `
		UPDATE waiting_entries
		SET attempts = attempts + 1, last_match_attempt = $2
		WHERE user_id = ANY($1) AND status = 'WAITING'`

	if _, err := s.db.ExecContext(ctx, query, pq.Array(userIDs), at); err != nil {
		return fmt.Errorf("queue: increment attempts: %w", err)
	}
	return nil
}

// CountWaitingByIntent aggregates the WAITING population per intent.
func (s *Store) CountWaitingByIntent(ctx context.Context) (map[Intent]int, error) {
	const query = `
		SELECT intent, COUNT(*)
		FROM waiting_entries
		WHERE status = 'WAITING'
		GROUP BY intent`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue: count by intent: %w", err)
	}
	defer rows.Close()

	counts := make(map[Intent]int)
	for rows.Next() {
		var (
			intent string
			n      int
		)
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, fmt.Errorf("queue: count by intent scan: %w", err)
		}
		counts[Intent(intent)] = n
	}
	return counts, rows.Err()
}

// CountWaitingByGender aggregates the WAITING population per gender class.
func (s *Store) CountWaitingByGender(ctx context.Context) (map[Gender]int, error) {
	const query = `
		SELECT gender, COUNT(*)
		FROM waiting_entries
		WHERE status = 'WAITING'
		GROUP BY gender`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue: count by gender: %w", err)
	}
	defer rows.Close()

	counts := make(map[Gender]int)
	for rows.Next() {
		var (
			gender string
			n      int
		)
		if err := rows.Scan(&gender, &n); err != nil {
			return nil, fmt.Errorf("queue: count by gender scan: %w", err)
		}
		counts[Gender(gender)] = n
	}
	return counts, rows.Err()
}

// MatchesSince counts match attempts created at or after the cutoff. Used
// for the trailing-24h stat.
func (s *Store) MatchesSince(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM match_attempts
		WHERE created_at >= $1`

	var n int
	if err := s.db.QueryRowContext(ctx, query, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue: matches since: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
