package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
	"auctioneer/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// eventEnvelope wraps every published event with routing metadata
type eventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventPublisher implements the EventPublisher interface using NATS
type NATSEventPublisher struct {
	natsClient *NATSClient
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient *NATSClient) interfaces.EventPublisher {
	return &NATSEventPublisher{natsClient: natsClient}
}

// Publish publishes an event to NATS on the subject derived from its type and
// the entity it concerns
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()

	subject := subjectFor(event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := eventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "auctioneer",
		Payload:       payload,
	}
	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.natsClient.Publish(ctx, subject, envelopeData); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	if metrics := observability.GetMetrics(); metrics != nil {
		metrics.RecordNATSMessagePublished(string(event.Type()))
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event to NATS")
	return nil
}

// subjectFor maps a domain event to its NATS subject
func subjectFor(event events.Event) string {
	switch e := event.(type) {
	case events.AuctionPriceChangedEvent:
		return fmt.Sprintf("auction.%d.price", e.AuctionID)
	case events.AuctionActivatedEvent:
		return fmt.Sprintf("auction.%d.activated", e.AuctionID)
	case events.AuctionEndedEvent:
		return fmt.Sprintf("auction.%d.ended", e.AuctionID)
	case events.OutbidEvent:
		return fmt.Sprintf("user.%d.outbid", e.OutbidUserID)
	case events.OrderStatusChangedEvent:
		return fmt.Sprintf("order.%d.status", e.OrderID)
	case events.WithdrawalStatusChangedEvent:
		return fmt.Sprintf("withdrawal.%d.status", e.WithdrawalID)
	case events.TransactionRecordedEvent:
		return fmt.Sprintf("ledger.%d.recorded", e.UserID)
	default:
		return fmt.Sprintf("marketplace.%s", event.Type())
	}
}
