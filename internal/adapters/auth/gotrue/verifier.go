package gotrue

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"stray-match/internal/ports/auth"
)

var ErrTokenEmpty = errors.New("token is empty")

const (
	ServiceRole   = "service_role"
	ServiceUserID = "service"
)

type VerifierConfig struct {
	// ServiceKey: un bearer igual a esta key es un caller interno (webhooks de DB, jobs).
	ServiceKey string

	// JWTSecret habilita la verificación local HS256; si falla se consulta GoTrue.
	JWTSecret string
}

// Verifier implementa auth.AuthVerifier.
type Verifier struct {
	client     *Client
	serviceKey string
	jwtSecret  []byte
}

func NewVerifier(client *Client, cfg VerifierConfig) *Verifier {
	v := &Verifier{
		client:     client,
		serviceKey: strings.TrimSpace(cfg.ServiceKey),
	}
	if s := strings.TrimSpace(cfg.JWTSecret); s != "" {
		v.jwtSecret = []byte(s)
	}
	return v
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	if v.serviceKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.serviceKey)) == 1 {
		return auth.Claims{UserID: ServiceUserID, Role: ServiceRole}, nil
	}

	if len(v.jwtSecret) > 0 {
		if claims, err := v.verifyLocal(token); err == nil {
			return claims, nil
		}
	}

	if v.client == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	claims, err := v.client.User(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

func (v *Verifier) verifyLocal(token string) (auth.Claims, error) {
	mc := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, mc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil {
		return auth.Claims{}, err
	}
	if !parsed.Valid {
		return auth.Claims{}, ErrUnauthorized
	}

	sub, _ := mc.GetSubject()
	sub = strings.TrimSpace(sub)
	role := stringClaim(mc, "role")
	if sub == "" && role != ServiceRole {
		return auth.Claims{}, ErrUnauthorized
	}
	if sub == "" {
		sub = ServiceUserID
	}
	return auth.Claims{
		UserID: sub,
		Email:  stringClaim(mc, "email"),
		Role:   role,
	}, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return strings.TrimSpace(s)
}
