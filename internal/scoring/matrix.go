package scoring

import "strings"

// Graded categorical dimensions. Each attribute maps onto an ordered scale
// and the score falls off linearly with distance on that scale. Unknown
// values on either side give the dimension's neutral 0.5, so missing data
// never disqualifies a pair here.

// frequencyLevels orders habit frequency for exercise, smoking and drinking.
var frequencyLevels = map[string]int{
	"never":     0,
	"rarely":    1,
	"sometimes": 2,
	"often":     3,
	"daily":     4,
}

// frequencyScore is the symmetric habit-frequency compatibility: identical
// habits score 1, opposite ends of the scale score 0.
func frequencyScore(a, b string) float64 {
	ia, oka := frequencyLevels[strings.ToLower(a)]
	ib, okb := frequencyLevels[strings.ToLower(b)]
	if !oka || !okb {
		return 0.5
	}
	return gradedScore(ia, ib, len(frequencyLevels)-1)
}

var educationLevels = map[string]int{
	"high_school": 0,
	"associate":   1,
	"bachelors":   2,
	"masters":     3,
	"doctorate":   4,
}

func educationScore(a, b string) float64 {
	ia, oka := educationLevels[strings.ToLower(a)]
	ib, okb := educationLevels[strings.ToLower(b)]
	if !oka || !okb {
		return 0.5
	}
	return gradedScore(ia, ib, len(educationLevels)-1)
}

var politicsLevels = map[string]int{
	"left":         0,
	"center_left":  1,
	"center":       2,
	"center_right": 3,
	"right":        4,
}

func politicsScore(a, b string) float64 {
	ia, oka := politicsLevels[strings.ToLower(a)]
	ib, okb := politicsLevels[strings.ToLower(b)]
	if !oka || !okb {
		return 0.5
	}
	return gradedScore(ia, ib, len(politicsLevels)-1)
}

var familyPlansLevels = map[string]int{
	"dont_want":    0,
	"undecided":    1,
	"want_someday": 2,
	"want_soon":    3,
}

func familyPlansScore(a, b string) float64 {
	ia, oka := familyPlansLevels[strings.ToLower(a)]
	ib, okb := familyPlansLevels[strings.ToLower(b)]
	if !oka || !okb {
		return 0.5
	}
	return gradedScore(ia, ib, len(familyPlansLevels)-1)
}

// religionAffinity holds the graded-compatibility pairs that score above the
// generic mismatch. Lookup is symmetric; identical values always score 1.
var religionAffinity = map[string]map[string]float64{
	"atheist":   {"agnostic": 0.8, "spiritual": 0.5},
	"agnostic":  {"spiritual": 0.7},
	"spiritual": {"buddhist": 0.7, "hindu": 0.6},
	"christian": {"catholic": 0.8, "orthodox": 0.7, "protestant": 0.8},
	"catholic":  {"orthodox": 0.7, "protestant": 0.7},
	"muslim":    {},
	"jewish":    {},
	"buddhist":  {"hindu": 0.6},
}

func religionScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1
	}
	if m, ok := religionAffinity[la]; ok {
		if v, ok := m[lb]; ok {
			return v
		}
	}
	if m, ok := religionAffinity[lb]; ok {
		if v, ok := m[la]; ok {
			return v
		}
	}
	return 0.4
}

func gradedScore(a, b, span int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if span <= 0 {
		return 1
	}
	return clamp01(1 - float64(diff)/float64(span))
}
