package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
)

// publisher wraps a domain.SignalBus to publish typed event envelopes to an
// auction's topic and the global topic. Publish failures are logged and
// swallowed: event-bus failures never propagate out of a service method,
// per the specification's broadcast-never-throws rule.
type publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

func newPublisher(bus domain.SignalBus, logger *slog.Logger) *publisher {
	return &publisher{bus: bus, logger: logger}
}

func (p *publisher) publish(ctx context.Context, topic string, eventType domain.EventType, payload any) {
	env := domain.Envelope{
		Type:      eventType,
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("service: failed to marshal event envelope",
			slog.String("event", string(eventType)), slog.String("error", err.Error()))
		return
	}
	if err := p.bus.Publish(ctx, topic, data); err != nil {
		p.logger.Error("service: failed to publish event",
			slog.String("event", string(eventType)), slog.String("topic", topic), slog.String("error", err.Error()))
	}
}

// publishAuctionScoped publishes eventType to both the auction's own topic
// and the global topic, per the specification's "auction + global" topic
// fan-out rule.
func (p *publisher) publishAuctionScoped(ctx context.Context, auctionID string, eventType domain.EventType, payload any) {
	p.publish(ctx, domain.AuctionTopic(auctionID), eventType, payload)
	p.publish(ctx, domain.GlobalTopic, eventType, payload)
}

// publishAuctionOnly publishes eventType only to the auction's own topic.
func (p *publisher) publishAuctionOnly(ctx context.Context, auctionID string, eventType domain.EventType, payload any) {
	p.publish(ctx, domain.AuctionTopic(auctionID), eventType, payload)
}
