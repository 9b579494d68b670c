package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"stray-match/internal/ports/tiers"
)

const upgradeMessage = "Become a supporter to raise your daily analysis limit."

type exceededResponse struct {
	Error          string    `json:"error"`
	Message        string    `json:"message"`
	ResetAt        time.Time `json:"resetAt"`
	Tier           string    `json:"tier"`
	UpgradeMessage string    `json:"upgradeMessage,omitempty"`
}

// ApplyHeaders setea X-RateLimit-Remaining / X-RateLimit-Reset (epoch seconds).
func ApplyHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// WriteExceeded escribe el 429 con headers de retry y el body contractual.
func WriteExceeded(w http.ResponseWriter, d Decision, now time.Time) {
	ApplyHeaders(w, d)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.ResetAt, now)))

	body := exceededResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Try again after the reset time.",
		ResetAt: d.ResetAt.UTC(),
		Tier:    string(d.Tier),
	}
	if d.Degraded {
		body.Message = "Usage could not be verified. Try again shortly."
	}
	if d.Tier == tiers.Free {
		body.UpgradeMessage = upgradeMessage
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
