package scoring

import (
	"math"
	"strings"

	"github.com/pairup/match-engine/internal/profile"
	"github.com/pairup/match-engine/internal/queue"
)

// neutralLocation is the fixed score when either side omitted coordinates.
// Deliberately above zero so users without a location are not excluded.
const neutralLocation = 0.3

// ageScore is 0 when either party falls outside the other's age window,
// otherwise a linear falloff by age difference normalized to the wider of
// the two configured ranges. Unknown age on either side is neutral 0.5.
func (sc *Scorer) ageScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) float64 {
	if a.Age == nil || b.Age == nil {
		return 0.5
	}
	if !ap.AcceptsAge(*b.Age) || !bp.AcceptsAge(*a.Age) {
		return 0
	}

	wider := ap.AgeRange()
	if r := bp.AgeRange(); r > wider {
		wider = r
	}
	if wider <= 0 {
		wider = sc.FallbackAgeRange
	}

	diff := *a.Age - *b.Age
	if diff < 0 {
		diff = -diff
	}
	return clamp01(1 - float64(diff)/float64(wider))
}

// locationScore is a linear falloff of great-circle distance to 0 at the
// stricter of the two max-radius preferences. Missing coordinates on either
// side give the fixed neutral.
func (sc *Scorer) locationScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) float64 {
	if a.Lat == nil || a.Lon == nil || b.Lat == nil || b.Lon == nil {
		return neutralLocation
	}

	limit := sc.FallbackRadiusKm
	switch {
	case ap.MaxRadiusKm > 0 && bp.MaxRadiusKm > 0:
		limit = math.Min(ap.MaxRadiusKm, bp.MaxRadiusKm)
	case ap.MaxRadiusKm > 0:
		limit = ap.MaxRadiusKm
	case bp.MaxRadiusKm > 0:
		limit = bp.MaxRadiusKm
	}

	d := Haversine(*a.Lat, *a.Lon, *b.Lat, *b.Lon)
	if d > limit {
		return 0
	}
	return clamp01(1 - d/limit)
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1 = lat1 * (math.Pi / 180)
	lat2 = lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// interestsScore blends raw-set overlap (weight 0.6) with how many of each
// side's preferred interests the other actually has (weight 0.4), capped at 1.
func interestsScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) float64 {
	setA := lowerSet(a.Interests)
	setB := lowerSet(b.Interests)

	common := 0
	for v := range setA {
		if setB[v] {
			common++
		}
	}

	overlap := 0.0
	if total := len(setA) + len(setB); total > 0 {
		overlap = float64(2*common) / float64(total)
	}

	prefMatch := (containedFraction(ap.Interests, setB) + containedFraction(bp.Interests, setA)) / 2

	return clamp01(0.6*overlap + 0.4*prefMatch)
}

// languageScore gates on language availability: no common language means the
// pair cannot talk and is never proposed. With a common language the score
// starts at 0.7 plus up to 0.3 for preferred-language matches.
func languageScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) (float64, bool) {
	setA := lowerSet(a.Languages)
	setB := lowerSet(b.Languages)

	common := false
	for v := range setA {
		if setB[v] {
			common = true
			break
		}
	}
	if !common {
		return 0, false
	}

	bonus := 0.3 * (containedFraction(ap.Languages, setB) + containedFraction(bp.Languages, setA)) / 2
	return clamp01(0.7 + bonus), true
}

// ethnicityScore never drops below the 0.5 base and never penalizes a
// mismatch: only additive, capped bonuses apply when a participant's
// ethnicity appears on the other's preferred list (scaled by that side's
// importance knob) plus a small same-ethnicity bonus. This floor is a
// fairness guarantee, not a tuning choice.
func ethnicityScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) float64 {
	s := 0.5
	if a.Ethnicity != "" && containsFold(bp.Ethnicities, a.Ethnicity) {
		s += 0.2 * importanceOr1(bp.EthnicityImportance)
	}
	if b.Ethnicity != "" && containsFold(ap.Ethnicities, b.Ethnicity) {
		s += 0.2 * importanceOr1(ap.EthnicityImportance)
	}
	if a.Ethnicity != "" && strings.EqualFold(a.Ethnicity, b.Ethnicity) {
		s += 0.1
	}
	return clamp01(s)
}

// intentScore rewards identical intents; differing intents score low unless
// each appears on the other side's preferred list. Entries are partitioned
// by intent before scanning, so in practice this is 1.0 within a cycle.
func intentScore(a *queue.WaitingEntry, ap *profile.Preferences, b *queue.WaitingEntry, bp *profile.Preferences) float64 {
	if a.Intent == b.Intent {
		return 1
	}
	s := 0.3
	if containsIntent(ap.Intents, b.Intent) {
		s += 0.35
	}
	if containsIntent(bp.Intents, a.Intent) {
		s += 0.35
	}
	return clamp01(s)
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[strings.ToLower(v)] = true
	}
	return set
}

// containedFraction is the share of preferred values present in the other
// side's set; 0 when no preference is stated.
func containedFraction(preferred []string, other map[string]bool) float64 {
	if len(preferred) == 0 {
		return 0
	}
	found := 0
	for _, p := range preferred {
		if other[strings.ToLower(p)] {
			found++
		}
	}
	return float64(found) / float64(len(preferred))
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func containsIntent(values []queue.Intent, want queue.Intent) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// importanceOr1 treats an unset importance knob as full weight.
func importanceOr1(v float64) float64 {
	if v <= 0 {
		return 1
	}
	if v > 1 {
		return 1
	}
	return v
}
