package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stray-match/internal/platform/httpclient"
	"stray-match/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("auth client not configured")
	ErrUnauthorized  = errors.New("auth unauthorized")
	ErrUpstream      = errors.New("auth upstream error")
)

const userPath = "/auth/v1/user"

// Config del cliente GoTrue (el servicio de auth detrás del backend hosteado).
type Config struct {
	BaseURL string
	APIKey  string // anon key; va en el header "apikey"

	Timeout time.Duration
}

type Client struct {
	http   *httpclient.Client
	apiKey string
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	apiKey := strings.TrimSpace(cfg.APIKey)

	hc, err := httpclient.New(httpclient.Options{
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
		Headers: map[string]string{"apikey": apiKey},
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, apiKey: apiKey}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// User resuelve el usuario dueño de un access token.
func (c *Client) User(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	var out userResponse
	err := c.http.DoJSON(ctx, http.MethodGet, userPath, map[string]string{
		"Authorization": "Bearer " + token,
	}, nil, &out)
	if err != nil {
		switch httpclient.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return auth.Claims{}, ErrUnauthorized
		default:
			return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}

	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing id", ErrUpstream)
	}

	return auth.Claims{
		UserID: out.ID,
		Email:  strings.TrimSpace(out.Email),
		Role:   strings.TrimSpace(out.Role),
	}, nil
}
