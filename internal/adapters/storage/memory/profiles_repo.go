package memory

import (
	"context"
	"sync"

	"stray-match/internal/ports/tiers"
)

type profile struct {
	tier      tiers.Tier
	pushToken string
}

// ProfilesRepo implementa tiers.Resolver y push.TokenResolver.
type ProfilesRepo struct {
	mu     sync.RWMutex
	byUser map[string]profile
}

func NewProfilesRepo() *ProfilesRepo {
	return &ProfilesRepo{byUser: make(map[string]profile)}
}

func (r *ProfilesRepo) Put(userID string, tier tiers.Tier, pushToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = profile{tier: tier, pushToken: pushToken}
}

func (r *ProfilesRepo) TierOf(ctx context.Context, userID string) (tiers.Tier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byUser[userID]
	if !ok {
		return tiers.Free, nil
	}
	return tiers.Parse(string(p.tier)), nil
}

func (r *ProfilesRepo) PushToken(ctx context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID].pushToken, nil
}
