package entities

import "time"

// OrderStatus represents the fulfillment state of an order
type OrderStatus string

const (
	OrderStatusPendingShipment OrderStatus = "pending_shipment"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order owns the post-auction fulfillment handshake. One order exists per
// completed auction with a winner; funds move to the seller only when the
// buyer confirms receipt.
type Order struct {
	ID             int64       `db:"id"`
	AuctionID      int64       `db:"auction_id"`
	BuyerID        int64       `db:"buyer_id"`
	SellerID       int64       `db:"seller_id"`
	Amount         int64       `db:"amount"`
	Status         OrderStatus `db:"status"`
	Carrier        *string     `db:"carrier"`
	TrackingNumber *string     `db:"tracking_number"`
	CancelReason   *string     `db:"cancel_reason"`
	CancelledBy    *int64      `db:"cancelled_by"`
	ShippedAt      *time.Time  `db:"shipped_at"`
	CompletedAt    *time.Time  `db:"completed_at"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// IsTerminal returns true once the order is completed or cancelled
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// CanShip returns true if the seller may mark the order shipped
func (o *Order) CanShip() bool {
	return o.Status == OrderStatusPendingShipment
}

// CanConfirmReceipt returns true if the buyer may confirm receipt
func (o *Order) CanConfirmReceipt() bool {
	return o.Status == OrderStatusShipped
}

// CanCancel returns true while the order has not completed
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPendingShipment || o.Status == OrderStatusShipped
}

// IsParticipant returns true for the buyer or the seller
func (o *Order) IsParticipant(userID int64) bool {
	return o.BuyerID == userID || o.SellerID == userID
}
