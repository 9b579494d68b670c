package matching

import (
	"testing"

	"stray-match/internal/domain/animals"
)

func TestShouldSkip_SpeciesMismatch(t *testing.T) {
	d := ShouldSkip(whiskers(), brownDogSighting())
	if !d.Skip || d.Reason != SkipSpeciesMismatch {
		t.Fatalf("expected species_mismatch, got %+v", d)
	}
}

func TestShouldSkip_ColorPairs(t *testing.T) {
	cases := []struct {
		name     string
		lost     string
		sighting string
		skip     bool
	}{
		{"white vs orange", "white", "orange", true},
		{"orange vs white (either direction)", "Orange tabby", "WHITE", true},
		{"black vs white", "black", "white", true},
		{"orange vs black", "orange", "black", true},
		{"same color", "white", "white", false},
		{"orange vs gray is not in the set", "orange", "gray", false},
		{"brown vs black is not in the set", "brown", "black", false},
		{"missing sighting color", "white", "", false},
		{"missing lost color", "", "orange", false},
		{"identical bicolor black and white", "black and white", "black and white", false},
		{"identical bicolor orange and white", "orange and white", "orange and white", false},
		{"bicolor vs one of its colors", "black and white", "white", false},
		{"bicolor vs a clashing color", "black and white", "orange", true},
		{"single color vs clashing bicolor", "white", "black and orange", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := whiskers()
			l.Color = tc.lost
			s := whiteCatSighting()
			s.Color = tc.sighting

			d := ShouldSkip(l, s)
			if d.Skip != tc.skip {
				t.Fatalf("expected skip=%v, got %+v", tc.skip, d)
			}
			if d.Skip && d.Reason != SkipColorMismatch {
				t.Fatalf("expected color_mismatch, got %q", d.Reason)
			}
		})
	}
}

func TestShouldSkip_IsDeterministic(t *testing.T) {
	l := whiskers()
	s := whiteCatSighting()
	s.AnimalType = animals.TypeCat
	first := ShouldSkip(l, s)
	for i := 0; i < 10; i++ {
		if got := ShouldSkip(l, s); got != first {
			t.Fatalf("non-deterministic decision: %+v vs %+v", got, first)
		}
	}
}
