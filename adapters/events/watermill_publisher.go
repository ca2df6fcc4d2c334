package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletauth/ports"
)

const (
	TopicLogout        = "walletauth.logout"
	TopicAuthenticated = "walletauth.authenticated"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address string `json:"address"`
	TokenID string `json:"token_id"`
}

// AuthenticatedEvent is published after an account proof has been accepted
type AuthenticatedEvent struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return p.publish(ctx, TopicLogout, tokenID, LogoutEvent{
		Address: address,
		TokenID: tokenID,
	})
}

// PublishAuthenticated publishes an authenticated event
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, address string, timestamp int64) error {
	return p.publish(ctx, TopicAuthenticated, watermill.NewUUID(), AuthenticatedEvent{
		Address:   address,
		Timestamp: timestamp,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards all events
type NopPublisher struct{}

func (NopPublisher) PublishLogout(context.Context, string, string) error       { return nil }
func (NopPublisher) PublishAuthenticated(context.Context, string, int64) error { return nil }
