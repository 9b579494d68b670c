package vision

import (
	"context"
	"errors"
)

// Image es una URL pública o un data URI (base64).
type Image struct {
	URL string
}

// Request es un pedido genérico a un modelo multimodal.
type Request struct {
	System    string
	Prompt    string
	Images    []Image
	MaxTokens int
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Pricing en USD por millón de tokens.
type Pricing struct {
	InputPerMTok  float64 `koanf:"input_per_mtok"`
	OutputPerMTok float64 `koanf:"output_per_mtok"`
}

func DefaultPricing() Pricing {
	return Pricing{InputPerMTok: 0.15, OutputPerMTok: 0.60}
}

func (p Pricing) Cost(u Usage) float64 {
	return float64(u.InputTokens)*p.InputPerMTok/1e6 + float64(u.OutputTokens)*p.OutputPerMTok/1e6
}

// Response trae el texto libre del modelo; el parseo queda del lado del dominio.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Model es la capacidad externa de visión (black box).
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrNotConfigured lo devuelve Unavailable en cada llamada.
var ErrNotConfigured = errors.New("vision model not configured")

// Unavailable es el Model cuando no hay proveedor configurado: toda llamada falla,
// con lo que el análisis cuenta como fallo del analizador.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
