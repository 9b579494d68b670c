package matching

import (
	"errors"
	"strings"
	"time"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/ports/tiers"
)

var (
	ErrMalformedRequest    = errors.New("exactly one of sightingId or lostAnimalId is required")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrOriginNotFound      = errors.New("origin record not found")
	ErrAnalyzerUnavailable = errors.New("match analyzer unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

// AcceptThreshold es inclusivo: 80 se persiste, 79 no.
const AcceptThreshold = 80

// Stage es el estado del pipeline de un run.
type Stage string

const (
	StageRateLimited Stage = "rate_limited"
	StageSearching   Stage = "searching"
	StageFiltering   Stage = "filtering"
	StageAnalyzing   Stage = "analyzing"
	StagePersisting  Stage = "persisting"
	StageNotifying   Stage = "notifying"
	StageDone        Stage = "done"
	StageError       Stage = "error"
)

// Trigger es el evento de entrada: exactamente uno de los dos IDs.
type Trigger struct {
	SightingID   string
	LostAnimalID string
}

func (t Trigger) Validate() error {
	hasSighting := strings.TrimSpace(t.SightingID) != ""
	hasLost := strings.TrimSpace(t.LostAnimalID) != ""
	if hasSighting == hasLost {
		return ErrMalformedRequest
	}
	return nil
}

// Kind se usa como label de métricas/logs.
func (t Trigger) Kind() string {
	if strings.TrimSpace(t.SightingID) != "" {
		return "sighting"
	}
	return "lost_animal"
}

// Caller es quien dispara el run. Los callers de servicio (webhooks de DB)
// no pasan por el rate limiter.
type Caller struct {
	UserID  string
	Tier    tiers.Tier
	Service bool
}

// Candidate es un par transitorio, nunca se persiste.
type Candidate struct {
	Lost     animals.LostAnimal
	Sighting animals.Sighting
}

// Verdict es la respuesta normalizada del analizador.
type Verdict struct {
	Confidence int
	Reason     string
}

// Result es un match persistido. Único por (LostAnimalID, SightingID), nunca se muta.
type Result struct {
	ID           string
	LostAnimalID string
	SightingID   string
	Confidence   int
	Reason       string
	CreatedAt    time.Time
}

// Acceptance indica si AcceptIfNew insertó una fila nueva.
type Acceptance struct {
	Inserted bool
	Result   Result
}

// Report es interno (se loguea); la respuesta HTTP solo expone success.
type Report struct {
	Trigger Trigger
	Stage   Stage

	Candidates       int
	Skipped          int
	AlreadyMatched   int
	Analyzed         int
	AnalyzerFailures int
	Accepted         int
	Notified         int

	// RateLimit queda seteado cuando el gate corrió.
	RateLimit *ratelimit.Decision
}
