package store

import "github.com/jackc/pgx/v5/pgtype"

// Order statuses. Transitions only move forward; FAILED is terminal but
// re-attemptable through a fresh payment attempt.
const (
	OrderStatusCreated         = "CREATED"
	OrderStatusAwaitingGateway = "AWAITING_GATEWAY"
	OrderStatusDebiting        = "DEBITING"
	OrderStatusVerifying       = "VERIFYING"
	OrderStatusSettled         = "SETTLED"
	OrderStatusFailed          = "FAILED"
)

// Payment statuses surfaced alongside order status.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// Payment methods accepted at checkout.
const (
	MethodGateway        = "GATEWAY"
	MethodWallet         = "WALLET"
	MethodCashOnDelivery = "CASH_ON_DELIVERY"
)

// Payment attempt outcomes.
const (
	OutcomePending = "PENDING"
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
	OutcomeExpired = "EXPIRED"
)

// Order is the durable order record. Lines and totals are frozen at creation
// time; the grand total is the single source of truth for verification.
type Order struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	AddressID       pgtype.UUID
	PaymentMethod   string
	Status          string
	PaymentStatus   string
	Currency        string
	Subtotal        int64
	Discount        int64
	PayableSubtotal int64
	DeliveryCharge  int64
	GrandTotal      int64
	AuditFlagged    bool
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
	SettledAt       pgtype.Timestamptz
}

// OrderLine is a frozen copy of a cart line at order creation time.
type OrderLine struct {
	ID           pgtype.UUID
	OrderID      pgtype.UUID
	ProductID    pgtype.UUID
	Title        string
	Qty          int32
	UnitPrice    int64
	DiscountBps  int32
	LineTotal    int64
	LineDiscount int64
}

// PaymentAttempt records one settlement attempt against an order. Attempts
// are append-only; at most one is in flight per order.
type PaymentAttempt struct {
	ID                pgtype.UUID
	OrderID           pgtype.UUID
	Method            string
	GatewayOrderRef   pgtype.Text
	GatewayPaymentRef pgtype.Text
	Signature         pgtype.Text
	Outcome           string
	FailReason        pgtype.Text
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

// Wallet is the per-user ledger. Available balance never goes negative.
type Wallet struct {
	UserID         pgtype.UUID
	AvailableCents int64
	LockedCents    int64
	UpdatedAt      pgtype.Timestamptz
}

// CartLine is a line in the caller's active cart, carrying the per-tier
// discount percents (basis points) captured from the catalog collaborator.
type CartLine struct {
	ID              pgtype.UUID
	CartID          pgtype.UUID
	ProductID       pgtype.UUID
	Title           string
	Qty             int32
	UnitPrice       int64
	TraineeBps      int32
	EntrepreneurBps int32
}

// DeliveryFeeRule is one bracket of the tiered delivery-fee table.
type DeliveryFeeRule struct {
	ID        pgtype.UUID
	MinAmount int64
	MaxAmount int64
	Charge    int64
	Active    bool
}

// DomainEvent is a persisted event emitted by state transitions. External
// views (cart, wallet) re-read on these rather than being pushed to.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
