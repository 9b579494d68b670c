package auth

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string

	// Role viene del proveedor de auth ("authenticated", "service_role"...).
	Role string
}

// IsService indica un caller interno (webhooks de DB, jobs).
func (c Claims) IsService() bool {
	return c.Role == "service_role"
}
