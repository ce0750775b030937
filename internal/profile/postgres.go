package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pairup/match-engine/internal/queue"
)

// PostgresSource reads preferences from the profile service's tables. Read
// path only; users without a stored profile get Defaults.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a preference source over the given handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Preferences loads one user's matching configuration. A missing row is not
// an error: scoring degrades to neutral defaults rather than failing the
// user's pairings.
func (s *PostgresSource) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	const query = `
		SELECT user_id,
		       min_age, max_age, max_radius_km,
		       preferred_genders, preferred_intents, preferred_interests,
		       preferred_languages, preferred_ethnicities, ethnicity_importance,
		       education, religion, politics, family_plans,
		       exercise, smoking, drinking,
		       premium, weights
		FROM match_preferences
		WHERE user_id = $1`

	var (
		p           Preferences
		genders     []string
		intents     []string
		education   sql.NullString
		religion    sql.NullString
		politics    sql.NullString
		familyPlans sql.NullString
		exercise    sql.NullString
		smoking     sql.NullString
		drinking    sql.NullString
		weightsJSON []byte
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.MinAge, &p.MaxAge, &p.MaxRadiusKm,
		pq.Array(&genders), pq.Array(&intents), pq.Array(&p.Interests),
		pq.Array(&p.Languages), pq.Array(&p.Ethnicities), &p.EthnicityImportance,
		&education, &religion, &politics, &familyPlans,
		&exercise, &smoking, &drinking,
		&p.Premium, &weightsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: load %s: %w", userID, err)
	}

	for _, g := range genders {
		p.Genders = append(p.Genders, queue.Gender(g))
	}
	for _, in := range intents {
		p.Intents = append(p.Intents, queue.Intent(in))
	}
	p.Education = education.String
	p.Religion = religion.String
	p.Politics = politics.String
	p.FamilyPlans = familyPlans.String
	p.Exercise = exercise.String
	p.Smoking = smoking.String
	p.Drinking = drinking.String

	if len(weightsJSON) > 0 {
		if err := unmarshalWeights(weightsJSON, &p.Weights); err != nil {
			// A malformed weights blob falls back to defaults rather than
			// failing the hydrate.
			p.Weights = Weights{}
		}
	}
	return &p, nil
}
