package scoring

import (
	"math"
	"testing"

	"github.com/pairup/match-engine/internal/profile"
	"github.com/pairup/match-engine/internal/queue"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", 48.8566, 2.3522, 48.8566, 2.3522, 0, 0.001},
		{"paris to london", 48.8566, 2.3522, 51.5074, -0.1278, 343.5, 2},
		{"new york to los angeles", 40.7128, -74.0060, 34.0522, -118.2437, 3936, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("Haversine() = %.1f km, want %.1f ± %.1f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestAgeScore(t *testing.T) {
	sc := NewScorer()

	a := testEntry("a", queue.GenderFemale, func(e *queue.WaitingEntry) { e.Age = intPtr(30) })
	b := testEntry("b", queue.GenderMale, func(e *queue.WaitingEntry) { e.Age = intPtr(30) })
	ap := testPrefs("a", func(p *profile.Preferences) { p.MinAge, p.MaxAge = 25, 35 })
	bp := testPrefs("b", func(p *profile.Preferences) { p.MinAge, p.MaxAge = 25, 35 })

	if got := sc.ageScore(a, ap, b, bp); got != 1.0 {
		t.Errorf("identical in-window ages: got %.3f, want 1.0", got)
	}

	// One side's window rejects the other's age outright.
	ap.MinAge, ap.MaxAge = 35, 45
	if got := sc.ageScore(a, ap, b, bp); got != 0 {
		t.Errorf("age outside hard window: got %.3f, want 0", got)
	}

	// Unknown age on either side is neutral.
	b.Age = nil
	ap.MinAge, ap.MaxAge = 25, 35
	if got := sc.ageScore(a, ap, b, bp); got != 0.5 {
		t.Errorf("unknown age: got %.3f, want 0.5", got)
	}
}

func TestAgeScore_FalloffWithGap(t *testing.T) {
	sc := NewScorer()
	ap := testPrefs("a", func(p *profile.Preferences) { p.MinAge, p.MaxAge = 20, 45 })
	bp := testPrefs("b", func(p *profile.Preferences) { p.MinAge, p.MaxAge = 20, 45 })

	a := testEntry("a", queue.GenderFemale, func(e *queue.WaitingEntry) { e.Age = intPtr(30) })
	near := testEntry("b", queue.GenderMale, func(e *queue.WaitingEntry) { e.Age = intPtr(31) })
	far := testEntry("c", queue.GenderMale, func(e *queue.WaitingEntry) { e.Age = intPtr(42) })

	nearScore := sc.ageScore(a, ap, near, bp)
	farScore := sc.ageScore(a, ap, far, bp)
	if nearScore <= farScore {
		t.Errorf("smaller age gap should score higher: %.3f <= %.3f", nearScore, farScore)
	}
}

func TestLocationScore(t *testing.T) {
	sc := NewScorer()

	// Missing coordinates on either side are neutral.
	a := testEntry("a", queue.GenderFemale)
	b := testEntry("b", queue.GenderMale)
	if got := sc.locationScore(a, testPrefs("a"), b, testPrefs("b")); got != neutralLocation {
		t.Errorf("missing coordinates: got %.3f, want %.3f", got, neutralLocation)
	}

	// ~20 km apart: the stricter of the two radii wins.
	a.Lat, a.Lon = floatPtr(52.5200), floatPtr(13.4050)
	b.Lat, b.Lon = floatPtr(52.7000), floatPtr(13.4050)
	ap := testPrefs("a", func(p *profile.Preferences) { p.MaxRadiusKm = 10 })
	bp := testPrefs("b", func(p *profile.Preferences) { p.MaxRadiusKm = 50 })
	if got := sc.locationScore(a, ap, b, bp); got != 0 {
		t.Errorf("beyond stricter radius: got %.3f, want 0", got)
	}

	// Neither side sets a radius: the fallback applies and nearby pairs
	// score close to 1.
	near := testEntry("c", queue.GenderMale, func(e *queue.WaitingEntry) {
		e.Lat, e.Lon = floatPtr(52.5300), floatPtr(13.4050)
	})
	if got := sc.locationScore(a, testPrefs("a"), near, testPrefs("c")); got < 0.9 {
		t.Errorf("~1 km apart under fallback radius: got %.3f, want >= 0.9", got)
	}
}

func TestInterestsScore(t *testing.T) {
	a := testEntry("a", queue.GenderFemale, func(e *queue.WaitingEntry) {
		e.Interests = []string{"hiking", "jazz", "cooking"}
	})
	b := testEntry("b", queue.GenderMale, func(e *queue.WaitingEntry) {
		e.Interests = []string{"Hiking", "Jazz", "Cooking"}
	})
	if got := interestsScore(a, testPrefs("a"), b, testPrefs("b")); got < 0.59 {
		t.Errorf("identical interests (case-insensitive): got %.3f, want >= 0.6 overlap share", got)
	}

	// Preferred-interest hits add on top of raw overlap.
	ap := testPrefs("a", func(p *profile.Preferences) { p.Interests = []string{"hiking", "jazz", "cooking"} })
	bp := testPrefs("b", func(p *profile.Preferences) { p.Interests = []string{"hiking", "jazz", "cooking"} })
	full := interestsScore(a, ap, b, bp)
	if math.Abs(full-1.0) > 1e-9 {
		t.Errorf("full overlap and full preference match: got %.3f, want 1.0", full)
	}

	// Disjoint interest sets score zero overlap.
	b.Interests = []string{"chess", "opera"}
	if got := interestsScore(a, testPrefs("a"), b, testPrefs("b")); got != 0 {
		t.Errorf("disjoint interests: got %.3f, want 0", got)
	}
}

func TestLanguageScore(t *testing.T) {
	a := testEntry("a", queue.GenderFemale, func(e *queue.WaitingEntry) {
		e.Languages = []string{"english", "french"}
	})
	b := testEntry("b", queue.GenderMale, func(e *queue.WaitingEntry) {
		e.Languages = []string{"ENGLISH"}
	})

	got, ok := languageScore(a, testPrefs("a"), b, testPrefs("b"))
	if !ok {
		t.Fatal("shared language should pass the gate")
	}
	if got < 0.7 {
		t.Errorf("any shared language scores at least the base: got %.3f", got)
	}

	b.Languages = []string{"mandarin"}
	if _, ok := languageScore(a, testPrefs("a"), b, testPrefs("b")); ok {
		t.Error("no shared language must fail the gate")
	}
}

func TestEthnicityScore_FloorAndCeiling(t *testing.T) {
	cases := []struct {
		name   string
		ea, eb string
		ap, bp *profile.Preferences
	}{
		{"both unset", "", "", testPrefs("a"), testPrefs("b")},
		{"same ethnicity", "latino", "latino", testPrefs("a"), testPrefs("b")},
		{
			"mutual preference miss",
			"asian", "black",
			testPrefs("a", func(p *profile.Preferences) { p.Ethnicities = []string{"white"}; p.EthnicityImportance = 1 }),
			testPrefs("b", func(p *profile.Preferences) { p.Ethnicities = []string{"latino"}; p.EthnicityImportance = 1 }),
		},
		{
			"mutual preference hit",
			"asian", "black",
			testPrefs("a", func(p *profile.Preferences) { p.Ethnicities = []string{"black"}; p.EthnicityImportance = 1 }),
			testPrefs("b", func(p *profile.Preferences) { p.Ethnicities = []string{"asian"}; p.EthnicityImportance = 1 }),
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			a := testEntry("a", queue.GenderFemale, func(e *queue.WaitingEntry) { e.Ethnicity = tt.ea })
			b := testEntry("b", queue.GenderMale, func(e *queue.WaitingEntry) { e.Ethnicity = tt.eb })
			got := ethnicityScore(a, tt.ap, b, tt.bp)
			if got < 0.5 {
				t.Errorf("ethnicity sub-score below floor: %.3f", got)
			}
			if got > 1 {
				t.Errorf("ethnicity sub-score above 1: %.3f", got)
			}
		})
	}
}

func TestIntentScore(t *testing.T) {
	a := testEntry("a", queue.GenderFemale)
	b := testEntry("b", queue.GenderMale)
	if got := intentScore(a, testPrefs("a"), b, testPrefs("b")); got != 1.0 {
		t.Errorf("same intent: got %.3f, want 1.0", got)
	}

	b.Intent = queue.IntentCasual
	got := intentScore(a, testPrefs("a"), b, testPrefs("b"))
	if got >= 1.0 || got <= 0 {
		t.Errorf("different intents without preferences: got %.3f, want partial credit", got)
	}

	// Each side listing the other's intent recovers most of the score.
	ap := testPrefs("a", func(p *profile.Preferences) { p.Intents = []queue.Intent{queue.IntentCasual} })
	bp := testPrefs("b", func(p *profile.Preferences) { p.Intents = []queue.Intent{queue.IntentSerious} })
	if cross := intentScore(a, ap, b, bp); cross <= got {
		t.Errorf("mutual intent preference should raise the score: %.3f <= %.3f", cross, got)
	}
}
