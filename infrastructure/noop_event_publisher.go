package infrastructure

import (
	"context"

	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
)

// NoopEventPublisher discards all events. Used when NATS is unavailable or
// disabled so the ledger keeps working without a message bus.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op publisher
func NewNoopEventPublisher() interfaces.TransactionalEventPublisher {
	return &NoopEventPublisher{}
}

func (p *NoopEventPublisher) Publish(event events.Event) error { return nil }

func (p *NoopEventPublisher) Flush(ctx context.Context) error { return nil }

func (p *NoopEventPublisher) Discard() {}
