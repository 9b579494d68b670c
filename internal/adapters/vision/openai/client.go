// Package openai implementa vision.Model sobre la API de chat completions.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stray-match/internal/platform/httpclient"
	"stray-match/internal/platform/retry"
	"stray-match/internal/ports/vision"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o-mini"

	completionsPath = "/v1/chat/completions"
)

var (
	ErrNotConfigured = errors.New("vision model not configured")
	ErrEmptyResponse = errors.New("vision model returned no content")
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// Detail de las imágenes: "low" abarata tokens, "auto" deja decidir al modelo.
	ImageDetail string
}

type Client struct {
	http   *httpclient.Client
	model  string
	detail string
	policy retry.Policy
}

// DefaultPolicy: un reintento ante 429/5xx o error de red.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 2,
		Backoff:     []time.Duration{0, time.Second},
		FailureMode: retry.FailClosed,
	}
}

func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	detail := strings.TrimSpace(cfg.ImageDetail)
	if detail == "" {
		detail = "low"
	}

	hc, err := httpclient.New(httpclient.Options{
		BaseURL: base,
		Timeout: cfg.Timeout,
		Headers: map[string]string{"Authorization": "Bearer " + key},
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, model: model, detail: detail, policy: DefaultPolicy()}, nil
}

// WithPolicy reemplaza la política de reintentos (tests).
func (c *Client) WithPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Messages  []message `json:"messages"`
}

func (c *Client) buildRequest(req vision.Request) completionRequest {
	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	for _, img := range req.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: img.URL, Detail: c.detail},
		})
	}

	msgs := make([]message, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, message{Role: "system", Content: s})
	}
	msgs = append(msgs, message{Role: "user", Content: parts})

	return completionRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
	}
}

func (c *Client) Complete(ctx context.Context, req vision.Request) (vision.Response, error) {
	if c == nil || c.http == nil {
		return vision.Response{}, ErrNotConfigured
	}
	body := c.buildRequest(req)

	var raw json.RawMessage
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		err := c.http.DoJSON(ctx, http.MethodPost, completionsPath, nil, body, &raw)
		if err == nil {
			return nil
		}
		if code := httpclient.StatusCode(err); code != 0 && code != http.StatusTooManyRequests && code < 500 {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return vision.Response{}, fmt.Errorf("chat completion: %w", err)
	}

	return parseResponse(raw)
}

func parseResponse(raw []byte) (vision.Response, error) {
	res := gjson.ParseBytes(raw)
	text := strings.TrimSpace(res.Get("choices.0.message.content").String())
	if text == "" {
		return vision.Response{}, ErrEmptyResponse
	}
	return vision.Response{
		Text:  text,
		Model: res.Get("model").String(),
		Usage: vision.Usage{
			InputTokens:  int(res.Get("usage.prompt_tokens").Int()),
			OutputTokens: int(res.Get("usage.completion_tokens").Int()),
		},
	}, nil
}
