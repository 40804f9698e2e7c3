package services

import (
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when an event targets a user with no live
// connection.
var ErrNotConnected = errors.New("user not connected")

// Notifier pushes asynchronous events to connections. Delivery failures are
// surfaced to the caller so they are observable instead of silently dropped.
type Notifier interface {
	Notify(userID, event string, payload interface{}) error
	Broadcast(event string, payload interface{})
}

// RegistryNotifier delivers events through the connection registry.
type RegistryNotifier struct {
	Registry *Registry
	Logger   zerolog.Logger
}

func (n *RegistryNotifier) Notify(userID, event string, payload interface{}) error {
	client, ok := n.Registry.Get(userID)
	if !ok {
		return ErrNotConnected
	}
	if err := client.Send(event, payload); err != nil {
		n.Logger.Warn().Err(err).Str("userId", userID).Str("event", event).
			Msg("event delivery failed")
		return err
	}
	return nil
}

func (n *RegistryNotifier) Broadcast(event string, payload interface{}) {
	for _, client := range n.Registry.All() {
		if err := client.Send(event, payload); err != nil {
			n.Logger.Warn().Err(err).Str("userId", client.UserID()).Str("event", event).
				Msg("broadcast delivery failed")
		}
	}
}
