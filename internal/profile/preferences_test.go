package profile

import (
	"testing"

	"github.com/pairup/match-engine/internal/queue"
)

func TestAcceptsGender(t *testing.T) {
	open := Defaults("u")
	picky := &Preferences{Genders: []queue.Gender{queue.GenderFemale, queue.GenderNonbinary}}

	tests := []struct {
		name  string
		prefs *Preferences
		g     queue.Gender
		want  bool
	}{
		{"empty list is open", open, queue.GenderMale, true},
		{"listed gender accepted", picky, queue.GenderFemale, true},
		{"unlisted gender rejected", picky, queue.GenderMale, false},
		{"unknown gender fails closed even when open", open, "", false},
		{"unknown gender fails closed when picky", picky, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prefs.AcceptsGender(tt.g); got != tt.want {
				t.Errorf("AcceptsGender(%q) = %v, want %v", tt.g, got, tt.want)
			}
		})
	}
}

func TestAcceptsAge(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		age      int
		want     bool
	}{
		{"inside window", 25, 35, 30, true},
		{"on lower bound", 25, 35, 25, true},
		{"on upper bound", 25, 35, 35, true},
		{"below window", 25, 35, 24, false},
		{"above window", 25, 35, 36, false},
		{"no bounds", 0, 0, 99, true},
		{"only lower bound", 21, 0, 20, false},
		{"only upper bound", 0, 40, 41, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Preferences{MinAge: tt.min, MaxAge: tt.max}
			if got := p.AcceptsAge(tt.age); got != tt.want {
				t.Errorf("AcceptsAge(%d) with [%d,%d] = %v, want %v",
					tt.age, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestAgeRange(t *testing.T) {
	if got := (&Preferences{MinAge: 25, MaxAge: 35}).AgeRange(); got != 10 {
		t.Errorf("AgeRange() = %d, want 10", got)
	}
	if got := (&Preferences{MaxAge: 35}).AgeRange(); got != 0 {
		t.Errorf("AgeRange() without a lower bound = %d, want 0", got)
	}
	if got := (&Preferences{MinAge: 40, MaxAge: 30}).AgeRange(); got != 0 {
		t.Errorf("AgeRange() with inverted bounds = %d, want 0", got)
	}
}

func TestDefaults(t *testing.T) {
	p := Defaults("someone")
	if p.UserID != "someone" {
		t.Errorf("user id = %q", p.UserID)
	}
	if !p.AcceptsAge(18) || !p.AcceptsAge(99) {
		t.Error("defaults must not restrict age")
	}
	if !p.AcceptsGender(queue.GenderNonbinary) {
		t.Error("defaults must be open to all known genders")
	}
	if p.Premium {
		t.Error("defaults must not grant premium")
	}
}
