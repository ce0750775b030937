// Package profile is the read-only view of the external profile service's
// data that the matching engine needs: each user's stated attributes,
// matching preferences, and per-dimension weights. The engine never mutates
// profile data.
package profile

import (
	"context"

	"github.com/pairup/match-engine/internal/queue"
)

// Weights are a user's per-dimension priorities. A zero value means the user
// left the dimension at its default weight of 1.0; the scorer averages both
// participants' weights so either party's priorities influence the pairing
// symmetrically.
type Weights struct {
	Age         float64 `json:"age"`
	Location    float64 `json:"location"`
	Interests   float64 `json:"interests"`
	Language    float64 `json:"language"`
	Ethnicity   float64 `json:"ethnicity"`
	Intent      float64 `json:"intent"`
	Education   float64 `json:"education"`
	Religion    float64 `json:"religion"`
	Politics    float64 `json:"politics"`
	FamilyPlans float64 `json:"family_plans"`
	Exercise    float64 `json:"exercise"`
	Smoking     float64 `json:"smoking"`
	Drinking    float64 `json:"drinking"`
}

// Preferences is a user's matching configuration together with the lifestyle
// attributes the scorer compares. Empty strings and empty slices mean "not
// stated" / "no restriction".
type Preferences struct {
	UserID string

	// Hard and soft filters.
	MinAge      int
	MaxAge      int
	MaxRadiusKm float64 // 0 = no radius restriction

	// Preferred-value lists. An empty Genders list means open to all; the
	// gender gate only engages when the list is non-empty.
	Genders     []queue.Gender
	Intents     []queue.Intent
	Interests   []string
	Languages   []string
	Ethnicities []string

	// EthnicityImportance scales the additive ethnicity bonus, in [0,1].
	EthnicityImportance float64

	// Own lifestyle/values attributes, compared pairwise by the scorer.
	Education   string
	Religion    string
	Politics    string
	FamilyPlans string
	Exercise    string
	Smoking     string
	Drinking    string

	Premium bool

	Weights Weights
}

// AcceptsGender reports whether the preference set admits the given gender.
// An empty preferred list is open; an unknown gender fails closed.
func (p *Preferences) AcceptsGender(g queue.Gender) bool {
	if g == "" {
		return false
	}
	if len(p.Genders) == 0 {
		return true
	}
	for _, want := range p.Genders {
		if want == g {
			return true
		}
	}
	return false
}

// AcceptsAge reports whether the age falls inside the user's [min,max]
// window. A zero bound is treated as unbounded on that side.
func (p *Preferences) AcceptsAge(age int) bool {
	if p.MinAge > 0 && age < p.MinAge {
		return false
	}
	if p.MaxAge > 0 && age > p.MaxAge {
		return false
	}
	return true
}

// AgeRange returns the width of the configured age window, 0 when unbounded.
func (p *Preferences) AgeRange() int {
	if p.MinAge <= 0 || p.MaxAge <= 0 || p.MaxAge < p.MinAge {
		return 0
	}
	return p.MaxAge - p.MinAge
}

// Source provides preferences for a user. Implementations must be safe for
// concurrent use; the scheduler hydrates a whole batch through one Source.
type Source interface {
	Preferences(ctx context.Context, userID string) (*Preferences, error)
}

// Defaults returns the preference set used when a user has no stored
// profile: no hard filters, every weight at its 1.0 default.
func Defaults(userID string) *Preferences {
	return &Preferences{UserID: userID}
}
