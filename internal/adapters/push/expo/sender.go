// Package expo envía push a través del relay de Expo.
package expo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stray-match/internal/platform/httpclient"
	"stray-match/internal/ports/push"
)

const (
	DefaultBaseURL = "https://exp.host"
	sendPath       = "/--/api/v2/push/send"

	defaultRPS   = 10
	defaultBurst = 20
)

var ErrRejected = errors.New("push relay rejected message")

type Config struct {
	BaseURL     string
	AccessToken string // opcional (enhanced push security)
	Timeout     time.Duration

	// RPS limita el envío saliente al relay.
	RPS   float64
	Burst int
}

// Sender implementa push.Sender. Available es true si hay URL de relay.
type Sender struct {
	http    *httpclient.Client
	limiter *rate.Limiter
}

func NewSender(cfg Config) (*Sender, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	headers := map[string]string{}
	if tok := strings.TrimSpace(cfg.AccessToken); tok != "" {
		headers["Authorization"] = "Bearer " + tok
	}

	hc, err := httpclient.New(httpclient.Options{
		BaseURL: base,
		Timeout: cfg.Timeout,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Sender{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

func (s *Sender) Available() bool {
	return s != nil && s.http != nil && s.http.BaseURL != ""
}

type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

func (s *Sender) Send(ctx context.Context, msg push.Message) error {
	if !s.Available() {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var out sendResponse
	if err := s.http.DoJSON(ctx, http.MethodPost, sendPath, nil, []push.Message{msg}, &out); err != nil {
		return fmt.Errorf("push relay: %w", err)
	}

	for _, t := range out.Data {
		if t.Status == "error" {
			if t.Details.Error != "" {
				return fmt.Errorf("%w: %s (%s)", ErrRejected, t.Message, t.Details.Error)
			}
			return fmt.Errorf("%w: %s", ErrRejected, t.Message)
		}
	}
	return nil
}
