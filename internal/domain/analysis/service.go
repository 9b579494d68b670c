// Package analysis describe la foto de un animal con el modelo de visión,
// detrás del rate limiter por tier.
package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/ports/tiers"
	"stray-match/internal/ports/vision"
)

var (
	ErrInvalidImage = errors.New("image must be an http(s) URL or base64 data")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("image analysis unavailable")
)

const (
	OperationPhotoAnalysis = "photo_analysis"
	defaultTimeout         = 45 * time.Second
	defaultMaxTokens       = 500
)

// Gate es el subconjunto de ratelimit.Service que usa este módulo.
type Gate interface {
	CheckAndConsume(ctx context.Context, userID string, tier tiers.Tier) ratelimit.Decision
	RecordUsage(ctx context.Context, e ratelimit.UsageEvent) error
}

// Analysis es la descripción estructurada de la foto.
type Analysis struct {
	AnimalType          string   `json:"animalType"`
	Breed               string   `json:"breed,omitempty"`
	Color               string   `json:"color,omitempty"`
	Size                string   `json:"size,omitempty"`
	Description         string   `json:"description"`
	DistinctiveFeatures []string `json:"distinctiveFeatures,omitempty"`
}

type Usage struct {
	TokensUsed int        `json:"tokensUsed"`
	Cost       float64    `json:"cost"`
	Remaining  int        `json:"remaining"`
	Tier       tiers.Tier `json:"tier"`
}

type Result struct {
	Analysis Analysis
	Usage    Usage
	Decision ratelimit.Decision
}

type Service struct {
	gate      Gate
	model     vision.Model
	pricing   vision.Pricing
	timeout   time.Duration
	maxTokens int
	log       logger.Logger
}

type Option func(*Service)

func WithPricing(p vision.Pricing) Option {
	return func(s *Service) { s.pricing = p }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(gate Gate, model vision.Model, opts ...Option) *Service {
	s := &Service{
		gate:      gate,
		model:     model,
		pricing:   vision.DefaultPricing(),
		timeout:   defaultTimeout,
		maxTokens: defaultMaxTokens,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(map[string]any{"component": "analysis"})
	return s
}

// Analyze aplica el rate limit, llama al modelo y registra el UsageEvent.
// Con rate limit excedido devuelve ratelimit.ErrRateLimited y la Decision en el Result.
func (s *Service) Analyze(ctx context.Context, userID string, tier tiers.Tier, image string) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, ErrUnauthorized
	}
	img, err := NormalizeImage(image)
	if err != nil {
		return Result{}, err
	}

	d := s.gate.CheckAndConsume(ctx, userID, tier)
	if !d.Allowed {
		return Result{Decision: d}, ratelimit.ErrRateLimited
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.model.Complete(callCtx, vision.Request{
		System:    describeSystemPrompt,
		Prompt:    "Describe the animal in this photo.",
		Images:    []vision.Image{img},
		MaxTokens: s.maxTokens,
	})
	success := err == nil
	s.record(ctx, userID, resp.Usage, success)
	if err != nil {
		metrics.RecordAnalyzerCall("describe_error", 0)
		s.log.Warn("photo analysis failed", map[string]any{"user_id": userID, "error": err})
		return Result{Decision: d}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	remaining := d.Remaining - 1
	if remaining < 0 {
		remaining = 0
	}
	d.Remaining = remaining

	return Result{
		Analysis: ParseAnalysis(resp.Text),
		Usage: Usage{
			TokensUsed: resp.Usage.Total(),
			Cost:       s.pricing.Cost(resp.Usage),
			Remaining:  remaining,
			Tier:       d.Tier,
		},
		Decision: d,
	}, nil
}

func (s *Service) record(ctx context.Context, userID string, u vision.Usage, success bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.gate.RecordUsage(ctx, ratelimit.UsageEvent{
		UserID:     userID,
		Operation:  OperationPhotoAnalysis,
		Success:    success,
		TokensUsed: u.Total(),
		Cost:       s.pricing.Cost(u),
	})
	if err != nil {
		s.log.Error("usage event not recorded", map[string]any{"user_id": userID, "error": err})
	}
}

const describeSystemPrompt = `You describe photos of stray or lost cats and dogs for a matching service.
Reply ONLY with JSON:
{"animalType": "cat|dog|unknown", "breed": "...", "color": "...", "size": "small|medium|large",
 "description": "...", "distinctiveFeatures": ["..."]}`

// ParseAnalysis usa el JSON del modelo si lo hay; si no, el texto entero queda como descripción.
func ParseAnalysis(text string) Analysis {
	if raw, ok := vision.ExtractJSONObject(text); ok {
		var a Analysis
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			if a.AnimalType == "" {
				a.AnimalType = "unknown"
			}
			return a
		}
	}
	return Analysis{AnimalType: "unknown", Description: strings.TrimSpace(text)}
}

// NormalizeImage acepta URL http(s), data URI o base64 pelado (se asume JPEG).
func NormalizeImage(image string) (vision.Image, error) {
	image = strings.TrimSpace(image)
	switch {
	case len(image) < 4:
		return vision.Image{}, ErrInvalidImage
	case strings.HasPrefix(image, "https://"), strings.HasPrefix(image, "http://"):
		return vision.Image{URL: image}, nil
	case strings.HasPrefix(image, "data:image/"):
		if !strings.Contains(image, ";base64,") {
			return vision.Image{}, ErrInvalidImage
		}
		return vision.Image{URL: image}, nil
	default:
		// Solo validamos un prefijo para no decodificar imágenes enteras.
		probe := image
		if len(probe) > 64 {
			probe = probe[:64]
		}
		if _, err := base64.StdEncoding.DecodeString(probe[:len(probe)/4*4]); err != nil {
			return vision.Image{}, ErrInvalidImage
		}
		return vision.Image{URL: "data:image/jpeg;base64," + image}, nil
	}
}
