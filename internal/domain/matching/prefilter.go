package matching

import (
	"strings"

	"stray-match/internal/domain/animals"
)

type SkipReason string

const (
	SkipSpeciesMismatch SkipReason = "species_mismatch"
	SkipColorMismatch   SkipReason = "color_mismatch"
)

// SkipDecision: con Skip=true la confianza del par se considera 0.
type SkipDecision struct {
	Skip   bool
	Reason SkipReason
}

// Lista fija de pares incompatibles. No ampliar sin revisar el impacto en recall
// (orange/gray, por ejemplo, no está).
var incompatibleColors = [][2]string{
	{"white", "orange"},
	{"black", "white"},
	{"white", "black"},
	{"orange", "black"},
}

// ShouldSkip descarta pares imposibles antes de llamar al analizador.
// Es pura y determinística.
func ShouldSkip(lost animals.LostAnimal, sighting animals.Sighting) SkipDecision {
	if lost.AnimalType != sighting.AnimalType {
		return SkipDecision{Skip: true, Reason: SkipSpeciesMismatch}
	}

	a := strings.ToLower(strings.TrimSpace(lost.Color))
	b := strings.ToLower(strings.TrimSpace(sighting.Color))
	if a == "" || b == "" {
		return SkipDecision{}
	}

	for _, pair := range incompatibleColors {
		if clashes(a, b, pair[0], pair[1]) || clashes(a, b, pair[1], pair[0]) {
			return SkipDecision{Skip: true, Reason: SkipColorMismatch}
		}
	}
	return SkipDecision{}
}

// clashes: a muestra x, b muestra y, y ninguno comparte el color del otro
// ("black and white" contra "black and white" no choca).
func clashes(a, b, x, y string) bool {
	if !strings.Contains(a, x) || !strings.Contains(b, y) {
		return false
	}
	return !strings.Contains(b, x) && !strings.Contains(a, y)
}
