package tiers

import "context"

// Tier clasifica al usuario para las cuotas de rate limiting.
type Tier string

const (
	Free      Tier = "free"
	Supporter Tier = "supporter"
	Admin     Tier = "admin"
)

// Parse normaliza un valor persistido; lo desconocido cae en Free.
func Parse(s string) Tier {
	switch Tier(s) {
	case Supporter, Admin:
		return Tier(s)
	default:
		return Free
	}
}

// Resolver devuelve el tier vigente de un usuario.
type Resolver interface {
	TierOf(ctx context.Context, userID string) (Tier, error)
}
