package push

import "context"

// Message es el payload que acepta el push relay: {to, title, body, data}.
type Message struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender envía push. Available se resuelve una vez al arrancar; los callers
// consultan Available en vez de chequear errores de carga.
type Sender interface {
	Available() bool
	Send(ctx context.Context, msg Message) error
}

// Disabled es la variante sin transporte configurado: no-op documentado.
type Disabled struct{}

func (Disabled) Available() bool                     { return false }
func (Disabled) Send(context.Context, Message) error { return nil }

// TokenResolver devuelve el destino push registrado para un usuario.
// "" sin error significa que no hay destino registrado.
type TokenResolver interface {
	PushToken(ctx context.Context, userID string) (string, error)
}
