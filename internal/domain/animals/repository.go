package animals

import (
	"context"
	"time"
)

// NearQuery es el filtro del camino primario (índice espacial).
type NearQuery struct {
	Type     AnimalType
	Origin   Coordinates
	RadiusKm float64
	Since    time.Time
}

// ScanQuery es el filtro del fallback: mismo tipo/ventana, sin filtro espacial.
type ScanQuery struct {
	Type  AnimalType
	Since time.Time
	Limit int
}

type SightingRepository interface {
	GetSighting(ctx context.Context, id string) (Sighting, error)
	FindSightingsNear(ctx context.Context, q NearQuery) ([]Sighting, error)
	ScanRecentSightings(ctx context.Context, q ScanQuery) ([]Sighting, error)
}

// LostAnimalRepository solo devuelve reportes activos en Find/Scan.
type LostAnimalRepository interface {
	GetLostAnimal(ctx context.Context, id string) (LostAnimal, error)
	FindLostAnimalsNear(ctx context.Context, q NearQuery) ([]LostAnimal, error)
	ScanActiveLostAnimals(ctx context.Context, q ScanQuery) ([]LostAnimal, error)
}
