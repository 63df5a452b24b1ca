package observability

// Metric names
const (
	BidsPlacedTotal            = "auctioneer.bids.placed.total"
	AuctionsFinalizedTotal     = "auctioneer.auctions.finalized.total"
	LedgerEntriesTotal         = "auctioneer.ledger.entries.total"
	WithdrawalRequestsTotal    = "auctioneer.withdrawals.requests.total"
	ReconcileRunsTotal         = "auctioneer.reconcile.runs.total"
	NATSMessagesPublishedTotal = "auctioneer.nats.messages.published.total"
	DatabaseQueriesTotal       = "auctioneer.database.queries.total"
	DatabaseQueryDuration      = "auctioneer.database.query.duration"
)

// Label keys
const (
	LabelType       = "type"
	LabelStatus     = "status"
	LabelEventType  = "event_type"
	LabelRepository = "repository"
	LabelMethod     = "method"
)
