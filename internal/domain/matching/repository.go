package matching

import "context"

// Repository persiste matches. InsertIfAbsent nunca falla por duplicado:
// devuelve inserted=false si el par ya existía.
type Repository interface {
	InsertIfAbsent(ctx context.Context, r Result) (bool, error)
	Exists(ctx context.Context, lostAnimalID, sightingID string) (bool, error)
	ListByLostAnimal(ctx context.Context, lostAnimalID string) ([]Result, error)
}
