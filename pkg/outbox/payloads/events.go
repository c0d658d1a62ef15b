package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// OrderShippedEvent is emitted on the first shipped transition of an order.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	BuyerID        uuid.UUID `json:"buyerId"`
	TrackingNumber *string   `json:"trackingNumber,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	ShippedAt      time.Time `json:"shippedAt"`
}

// OrderDeliveredEvent is emitted once, when an order first reaches DELIVERED.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	BuyerID     uuid.UUID `json:"buyerId"`
	Source      string    `json:"source"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// DeliveryStatusChangedEvent tracks delivery-partner transitions.
type DeliveryStatusChangedEvent struct {
	DeliveryOrderID   uuid.UUID                 `json:"deliveryOrderId"`
	OrderID           uuid.UUID                 `json:"orderId"`
	DeliveryProfileID uuid.UUID                 `json:"deliveryProfileId"`
	From              enums.DeliveryOrderStatus `json:"from"`
	To                enums.DeliveryOrderStatus `json:"to"`
}

// PayoutRecordedEvent is emitted when a payout row is appended.
type PayoutRecordedEvent struct {
	PayoutID        uuid.UUID        `json:"payoutId"`
	Kind            enums.PayoutKind `json:"kind"`
	ToUserID        uuid.UUID        `json:"toUserId"`
	OrderID         *uuid.UUID       `json:"orderId,omitempty"`
	EscrowID        *uuid.UUID       `json:"escrowId,omitempty"`
	DeliveryOrderID *uuid.UUID       `json:"deliveryOrderId,omitempty"`
	AmountCents     int64            `json:"amountCents"`
	ProviderRef     *string          `json:"providerRef,omitempty"`
}

// ReviewSubmittedEvent is emitted when a buyer completes a review.
type ReviewSubmittedEvent struct {
	ReviewID  uuid.UUID  `json:"reviewId"`
	ProductID uuid.UUID  `json:"productId"`
	BuyerID   uuid.UUID  `json:"buyerId"`
	OrderID   *uuid.UUID `json:"orderId,omitempty"`
	Rating    int        `json:"rating"`
	Verified  bool       `json:"verified"`
}

// UserDeletedEvent reports an admin cascading deletion.
type UserDeletedEvent struct {
	UserID      uuid.UUID        `json:"userId"`
	DeletedBy   uuid.UUID        `json:"deletedBy"`
	RowsByStep  map[string]int64 `json:"rowsByStep"`
	CompletedAt time.Time        `json:"completedAt"`
}
