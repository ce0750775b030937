// Package scoring computes multi-dimensional compatibility scores between
// two waiting users and their stated preferences. Everything here is pure:
// no I/O, no clock, no randomness. Missing inputs degrade to documented
// neutral defaults instead of failing a pair; only the gender and language
// gates can exclude a pair outright.
package scoring

import (
	"github.com/pairup/match-engine/internal/profile"
	"github.com/pairup/match-engine/internal/queue"
)

// AlgorithmVersion is stamped on every match attempt so downstream analytics
// can segment by scoring revision.
const AlgorithmVersion = "v2"

// Score is the full breakdown for one pair. Sub-scores are in [0,1]. The
// gates are preconditions: a pair with either gate false is never proposed,
// whatever Total says.
type Score struct {
	GenderOK   bool `json:"gender_ok"`
	LanguageOK bool `json:"language_ok"`

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

	// PremiumBonus is added to the blended total, not weighted into it.
	PremiumBonus float64 `json:"premium_bonus"`

	Total float64 `json:"total"`
}

// Matchable reports whether the pair passes both hard gates.
func (s Score) Matchable() bool {
	return s.GenderOK && s.LanguageOK
}

// Scorer holds the tunables of the blending step. The zero value is not
// usable; construct with NewScorer.
type Scorer struct {
	// FallbackRadiusKm is the falloff radius used when neither participant
	// restricts distance.
	FallbackRadiusKm float64
	// FallbackAgeRange normalizes the age falloff when neither participant
	// configured an age window.
	FallbackAgeRange int
	// PremiumBonusPerUser is added once per premium participant; the sum is
	// capped at PremiumBonusCap.
	PremiumBonusPerUser float64
	PremiumBonusCap     float64
}

// NewScorer returns a scorer with production defaults.
func NewScorer() *Scorer {
	return &Scorer{
		FallbackRadiusKm:    100,
		FallbackAgeRange:    20,
		PremiumBonusPerUser: 0.125,
		PremiumBonusCap:     0.25,
	}
}

// ScorePair computes the full compatibility breakdown for (a, b). The result
// is symmetric: swapping the pair yields the same Score.
func (sc *Scorer) ScorePair(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) Score {
	var s Score

	// Hard gates first. Unknown gender fails closed.
	s.GenderOK = ap.AcceptsGender(b.Gender) && bp.AcceptsGender(a.Gender)
	s.Language, s.LanguageOK = languageScore(a, ap, b, bp)

	s.Age = sc.ageScore(a, ap, b, bp)
	s.Location = sc.locationScore(a, ap, b, bp)
	s.Interests = interestsScore(a, ap, b, bp)
	s.Ethnicity = ethnicityScore(a, ap, b, bp)
	s.Intent = intentScore(a, ap, b, bp)
	s.Education = educationScore(ap.Education, bp.Education)
	s.Religion = religionScore(ap.Religion, bp.Religion)
	s.Politics = politicsScore(ap.Politics, bp.Politics)
	s.FamilyPlans = familyPlansScore(ap.FamilyPlans, bp.FamilyPlans)
	s.Exercise = frequencyScore(ap.Exercise, bp.Exercise)
	s.Smoking = frequencyScore(ap.Smoking, bp.Smoking)
	s.Drinking = frequencyScore(ap.Drinking, bp.Drinking)

	// Weighted blend. Each dimension's weight is the average of the two
	// participants' configured weights (0 = unset = 1.0).
	dims := []struct {
		value  float64
		wa, wb float64
	}{
		{s.Age, ap.Weights.Age, bp.Weights.Age},
		{s.Location, ap.Weights.Location, bp.Weights.Location},
		{s.Interests, ap.Weights.Interests, bp.Weights.Interests},
		{s.Language, ap.Weights.Language, bp.Weights.Language},
		{s.Ethnicity, ap.Weights.Ethnicity, bp.Weights.Ethnicity},
		{s.Intent, ap.Weights.Intent, bp.Weights.Intent},
		{s.Education, ap.Weights.Education, bp.Weights.Education},
		{s.Religion, ap.Weights.Religion, bp.Weights.Religion},
		{s.Politics, ap.Weights.Politics, bp.Weights.Politics},
		{s.FamilyPlans, ap.Weights.FamilyPlans, bp.Weights.FamilyPlans},
		{s.Exercise, ap.Weights.Exercise, bp.Weights.Exercise},
		{s.Smoking, ap.Weights.Smoking, bp.Weights.Smoking},
		{s.Drinking, ap.Weights.Drinking, bp.Weights.Drinking},
	}

	var num, den float64
	for _, d := range dims {
		w := (weightOr1(d.wa) + weightOr1(d.wb)) / 2
		num += d.value * w
		den += w
	}
	total := 0.0
	if den > 0 {
		total = clamp01(num / den)
	}

	s.PremiumBonus = sc.premiumBonus(ap, bp)
	s.Total = clamp01(total + s.PremiumBonus)
	return s
}

func (sc *Scorer) premiumBonus(ap, bp *profile.Preferences) float64 {
	bonus := 0.0
	if ap.Premium {
		bonus += sc.PremiumBonusPerUser
	}
	if bp.Premium {
		bonus += sc.PremiumBonusPerUser
	}
	if bonus > sc.PremiumBonusCap {
		bonus = sc.PremiumBonusCap
	}
	return bonus
}

func weightOr1(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
