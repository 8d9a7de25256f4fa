// Package events publishes keyfold credential lifecycle events through a
// Watermill publisher, so other service instances can react to token
// creation, consumption, and client registration warnings.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/keyfold/keyfold"
)

const defaultTopic = "keyfold.credentials"

// envelope is the wire form of a credential event.
type envelope struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	Credential string    `json:"credential,omitempty"`
	ServiceID  string    `json:"service_id,omitempty"`
	At         time.Time `json:"at"`
}

// WatermillNotifier implements [keyfold.Notifier] using Watermill.
type WatermillNotifier struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillNotifier wraps a Watermill publisher. An empty topic selects
// the default "keyfold.credentials".
func NewWatermillNotifier(publisher message.Publisher, topic string) *WatermillNotifier {
	if topic == "" {
		topic = defaultTopic
	}
	return &WatermillNotifier{publisher: publisher, topic: topic}
}

// Notify implements [keyfold.Notifier].
func (p *WatermillNotifier) Notify(ctx context.Context, event keyfold.Event) error {
	payload, err := json.Marshal(envelope{
		Type:       event.Type,
		AccountID:  event.AccountID,
		Email:      event.Email,
		TokenID:    event.TokenID,
		Credential: event.Credential,
		ServiceID:  event.ServiceID,
		At:         event.At,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
