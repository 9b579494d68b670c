package animals

import (
	"errors"
	"math"
	"strings"
	"time"

	"stray-match/internal/platform/geo"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrCoordinatesUndecodable: la columna geography no se pudo decodificar.
	ErrCoordinatesUndecodable = errors.New("coordinates undecodable")
)

// AnimalType define las especies soportadas.
// @Enum cat, dog
type AnimalType string

const (
	TypeCat AnimalType = "cat"
	TypeDog AnimalType = "dog"
)

func ParseType(s string) (AnimalType, bool) {
	switch AnimalType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeCat:
		return TypeCat, true
	case TypeDog:
		return TypeDog, true
	default:
		return "", false
	}
}

// Coordinates en grados WGS84. Un valor sin resolver se representa con NaN.
type Coordinates = geo.Point

// Unresolved devuelve coordenadas inválidas (p.ej. geography NULL).
func Unresolved() Coordinates {
	return Coordinates{Latitude: math.NaN(), Longitude: math.NaN()}
}

// LostStatus es el estado de un reporte de pérdida.
type LostStatus string

const (
	LostActive LostStatus = "active"
	LostFound  LostStatus = "found"
)

// Sighting es un avistamiento de un animal en la calle (read-only para este core).
type Sighting struct {
	ID         string
	ReporterID string

	AnimalType  AnimalType
	Location    Coordinates
	Color       string // opcional
	Breed       string // opcional
	Description string // opcional
	PhotoRef    string

	SpottedAt time.Time
	Status    string
}

// LostAnimal es un reporte de mascota perdida. Solo el flujo del dueño cambia Status.
type LostAnimal struct {
	ID      string
	OwnerID string
	Name    string

	AnimalType          AnimalType
	Location            Coordinates
	Color               string
	Breed               string
	Description         string
	DistinctiveFeatures []string
	PhotoRef            string

	Status    LostStatus
	CreatedAt time.Time
}

func (l LostAnimal) IsActive() bool { return l.Status == LostActive }
