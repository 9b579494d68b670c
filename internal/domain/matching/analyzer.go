package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/ports/vision"
)

const (
	DefaultAnalyzeTimeout = 45 * time.Second
	defaultMaxTokens      = 300

	// OperationMatchAnalysis es el Operation de los UsageEvent del analizador.
	OperationMatchAnalysis = "match_analysis"
)

// UsageRecorder recibe un UsageEvent por intento (ratelimit.Service lo implementa).
type UsageRecorder interface {
	RecordUsage(ctx context.Context, e ratelimit.UsageEvent) error
}

type Analyzer struct {
	model     vision.Model
	usage     UsageRecorder
	timeout   time.Duration
	maxTokens int
	pricing   vision.Pricing
	log       logger.Logger
	now       func() time.Time
}

type AnalyzerOption func(*Analyzer)

func WithAnalyzeTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMaxTokens(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithPricing(p vision.Pricing) AnalyzerOption {
	return func(a *Analyzer) { a.pricing = p }
}

func WithAnalyzerLogger(l logger.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalyzer(model vision.Model, usage UsageRecorder, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		model:     model,
		usage:     usage,
		timeout:   DefaultAnalyzeTimeout,
		maxTokens: defaultMaxTokens,
		pricing:   vision.DefaultPricing(),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(map[string]any{"component": "analyzer"})
	return a
}

// Analyze compara el par con el modelo de visión. Cualquier falla del modelo o
// del parseo devuelve ErrAnalyzerUnavailable: el par no produce match y el
// pipeline sigue. Siempre registra un UsageEvent a nombre de userID.
func (a *Analyzer) Analyze(ctx context.Context, userID string, lost animals.LostAnimal, sighting animals.Sighting) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := a.now()
	resp, err := a.model.Complete(ctx, BuildComparisonRequest(lost, sighting, a.maxTokens))
	elapsed := a.now().Sub(started).Seconds()

	if err != nil {
		metrics.RecordAnalyzerCall("upstream_error", elapsed)
		a.record(ctx, userID, vision.Usage{}, false)
		a.log.Warn("vision comparison failed", map[string]any{
			"lost_animal_id": lost.ID,
			"sighting_id":    sighting.ID,
			"error":          err,
		})
		return Verdict{}, fmt.Errorf("%w: %w", ErrAnalyzerUnavailable, err)
	}

	v, err := ParseVerdict(resp.Text)
	if err != nil {
		metrics.RecordAnalyzerCall("parse_error", elapsed)
		a.record(ctx, userID, resp.Usage, false)
		a.log.Warn("unparsable vision response", map[string]any{
			"lost_animal_id": lost.ID,
			"sighting_id":    sighting.ID,
			"error":          err,
		})
		return Verdict{}, fmt.Errorf("%w: %w", ErrAnalyzerUnavailable, err)
	}

	metrics.RecordAnalyzerCall("ok", elapsed)
	a.record(ctx, userID, resp.Usage, true)
	return v, nil
}

func (a *Analyzer) record(ctx context.Context, userID string, u vision.Usage, success bool) {
	if a.usage == nil {
		return
	}
	// El ctx del modelo puede estar vencido; el registro de uso no debe perderse por eso.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := a.usage.RecordUsage(ctx, ratelimit.UsageEvent{
		UserID:     userID,
		Operation:  OperationMatchAnalysis,
		Success:    success,
		TokensUsed: u.Total(),
		Cost:       a.pricing.Cost(u),
	})
	if err != nil {
		a.log.Error("usage event not recorded", map[string]any{"user_id": userID, "error": err})
	}
}

const comparisonSystemPrompt = `You compare two animal photos to decide whether they show the SAME individual animal.
Rules:
- If the animals are different types (cat vs dog), confidence MUST be 0.
- Weigh color, coat pattern, size and distinctive markings as the primary signals.
- Be conservative: use 80 or more only when you are highly certain it is the same individual.
Reply ONLY with JSON: {"confidence": <0-100>, "reason": "<short explanation>"}`

// BuildComparisonRequest arma el pedido con ambas fotos y la metadata de ambos registros.
func BuildComparisonRequest(lost animals.LostAnimal, sighting animals.Sighting, maxTokens int) vision.Request {
	var b strings.Builder
	b.WriteString("LOST ANIMAL (image 1):\n")
	writeField(&b, "Type", string(lost.AnimalType))
	writeField(&b, "Name", lost.Name)
	writeField(&b, "Breed", lost.Breed)
	writeField(&b, "Color", lost.Color)
	writeField(&b, "Description", lost.Description)
	if len(lost.DistinctiveFeatures) > 0 {
		writeField(&b, "Distinctive features", strings.Join(lost.DistinctiveFeatures, ", "))
	}

	b.WriteString("\nSIGHTING (image 2):\n")
	writeField(&b, "Type", string(sighting.AnimalType))
	writeField(&b, "Breed", sighting.Breed)
	writeField(&b, "Color", sighting.Color)
	writeField(&b, "Description", sighting.Description)

	b.WriteString("\nIs the sighted animal the same individual as the lost animal?")

	images := make([]vision.Image, 0, 2)
	for _, ref := range []string{lost.PhotoRef, sighting.PhotoRef} {
		if strings.TrimSpace(ref) != "" {
			images = append(images, vision.Image{URL: ref})
		}
	}

	return vision.Request{
		System:    comparisonSystemPrompt,
		Prompt:    b.String(),
		Images:    images,
		MaxTokens: maxTokens,
	}
}

func writeField(b *strings.Builder, name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "unknown"
	}
	b.WriteString("- ")
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

var errNoJSONObject = errors.New("no json object in response")

// ParseVerdict toma el primer objeto JSON del texto libre (tolera fences de
// markdown) y acota la confianza a [0,100].
func ParseVerdict(text string) (Verdict, error) {
	raw, ok := vision.ExtractJSONObject(text)
	if !ok {
		return Verdict{}, errNoJSONObject
	}

	var payload struct {
		Confidence json.RawMessage `json:"confidence"`
		Reason     string          `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	c, err := parseConfidence(payload.Confidence)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		Confidence: clampConfidence(c),
		Reason:     strings.TrimSpace(payload.Reason),
	}, nil
}

// Algunos modelos devuelven "85" o "85%" en vez de un número.
func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing confidence")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("confidence: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("confidence: %w", err)
	}
	return f, nil
}

// clampConfidence trunca: 79.9 queda en 79 y no alcanza el umbral.
func clampConfidence(f float64) int {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(math.Trunc(f))
}
