// Package notifications envía push best-effort al dueño de un reporte de pérdida
// y alertas de animales vistos cerca. Nunca bloquea ni falla al caller.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stray-match/internal/domain/animals"
	"stray-match/internal/platform/background"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/ports/push"
)

// ErrNotificationFailed solo aparece en logs del executor.
var ErrNotificationFailed = errors.New("notification failed")

const (
	KindMatch  = "match"
	KindNearby = "nearby"
)

type Dispatcher struct {
	sender push.Sender
	tokens push.TokenResolver
	exec   background.Executor
	log    logger.Logger
}

// NewDispatcher resuelve la capacidad push una sola vez: un sender nil o no
// disponible queda como push.Disabled.
func NewDispatcher(sender push.Sender, tokens push.TokenResolver, exec background.Executor, log logger.Logger) *Dispatcher {
	if sender == nil || !sender.Available() {
		sender = push.Disabled{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if exec == nil {
		exec = background.Inline{Log: log}
	}
	return &Dispatcher{
		sender: sender,
		tokens: tokens,
		exec:   exec,
		log:    log.With(map[string]any{"component": "notifications"}),
	}
}

// Enabled indica si hay transporte push configurado.
func (d *Dispatcher) Enabled() bool { return d.sender.Available() }

// NotifyOwner encola un push al dueño del reporte. Sin token registrado es no-op.
func (d *Dispatcher) NotifyOwner(ctx context.Context, lost animals.LostAnimal, sighting animals.Sighting, confidence int) {
	if !d.Enabled() {
		metrics.RecordNotification(KindMatch, "disabled")
		return
	}

	ownerID := lost.OwnerID
	msg := MatchMessage(lost, sighting, confidence)

	ok := d.exec.Submit("notify_owner", func(ctx context.Context) error {
		return d.deliver(ctx, KindMatch, ownerID, msg)
	})
	if !ok {
		metrics.RecordNotification(KindMatch, "dropped")
	}
}

// NotifyNearby encola una alerta de avistamientos cercanos para userID.
func (d *Dispatcher) NotifyNearby(ctx context.Context, userID string, count int, typ animals.AnimalType) bool {
	if !d.Enabled() || count <= 0 {
		metrics.RecordNotification(KindNearby, "disabled")
		return false
	}

	msg := NearbyMessage(count, typ)
	return d.exec.Submit("notify_nearby", func(ctx context.Context) error {
		return d.deliver(ctx, KindNearby, userID, msg)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, kind, userID string, msg push.Message) error {
	if d.tokens == nil || strings.TrimSpace(userID) == "" {
		metrics.RecordNotification(kind, "no_destination")
		return nil
	}

	token, err := d.tokens.PushToken(ctx, userID)
	if err != nil {
		metrics.RecordNotification(kind, "failed")
		return fmt.Errorf("%w: resolve push token: %w", ErrNotificationFailed, err)
	}
	if strings.TrimSpace(token) == "" {
		metrics.RecordNotification(kind, "no_destination")
		d.log.Debug("no push destination registered", map[string]any{"user_id": userID})
		return nil
	}

	msg.To = token
	if err := d.sender.Send(ctx, msg); err != nil {
		metrics.RecordNotification(kind, "failed")
		return fmt.Errorf("%w: send push: %w", ErrNotificationFailed, err)
	}

	metrics.RecordNotification(kind, "sent")
	return nil
}

// MatchMessage arma el push de match: el título menciona la confianza y el data
// lleva ambos IDs para deep-link.
func MatchMessage(lost animals.LostAnimal, sighting animals.Sighting, confidence int) push.Message {
	name := strings.TrimSpace(lost.Name)
	if name == "" {
		name = "your " + string(lost.AnimalType)
	}
	return push.Message{
		Title: fmt.Sprintf("Possible match for %s (%d%% confidence)", name, confidence),
		Body:  "Someone spotted an animal that looks like yours. Tap to review the sighting.",
		Data: map[string]string{
			"type":         KindMatch,
			"lostAnimalId": lost.ID,
			"sightingId":   sighting.ID,
		},
	}
}

func NearbyMessage(count int, typ animals.AnimalType) push.Message {
	noun := "animals"
	if typ != "" {
		noun = string(typ) + "s"
	}
	title := fmt.Sprintf("%d %s spotted nearby", count, noun)
	if count == 1 {
		title = "An animal was spotted nearby"
	}
	return push.Message{
		Title: title,
		Body:  "Check the map to see recent sightings around you.",
		Data:  map[string]string{"type": KindNearby},
	}
}
