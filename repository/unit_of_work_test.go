package repository

import (
	"context"
	"testing"

	"auctioneer/domain/events"
	"auctioneer/domain/interfaces"
	"auctioneer/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher buffers events and records flush/discard calls
type recordingPublisher struct {
	pending   []events.Event
	flushed   []events.Event
	discarded int
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.flushed = append(p.flushed, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.pending = nil
	p.discarded++
}

func TestUnitOfWork_CommitPersistsAndFlushes(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	publisher := &recordingPublisher{}
	factory := NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		return publisher
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user, err := uow.UserRepository().Create(ctx, "committed", "committed@example.com", 250000)
	require.NoError(t, err)
	require.NoError(t, uow.EventBus().Publish(events.AuctionActivatedEvent{AuctionID: 1}))

	// Nothing published until the transaction commits
	assert.Empty(t, publisher.flushed)

	require.NoError(t, uow.Commit())
	assert.Len(t, publisher.flushed, 1)

	// Row is visible outside the transaction
	reloaded, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, int64(250000), reloaded.Balance.Available)
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	publisher := &recordingPublisher{}
	factory := NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		return publisher
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user, err := uow.UserRepository().Create(ctx, "rolledback", "rolledback@example.com", 250000)
	require.NoError(t, err)
	require.NoError(t, uow.EventBus().Publish(events.AuctionActivatedEvent{AuctionID: 1}))

	require.NoError(t, uow.Rollback())
	assert.Empty(t, publisher.flushed)
	assert.Equal(t, 1, publisher.discarded)

	reloaded, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded)
}

func TestUnitOfWork_RollbackAfterCommitIsNoop(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	publisher := &recordingPublisher{}
	factory := NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		return publisher
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.UserRepository().Create(ctx, "noop", "noop@example.com", 0)
	require.NoError(t, err)

	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())
	assert.Equal(t, 0, publisher.discarded)
}

func TestUnitOfWork_DoubleBeginRejected(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, func() interfaces.TransactionalEventPublisher {
		return &recordingPublisher{}
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	assert.Error(t, uow.Begin(ctx))
}
