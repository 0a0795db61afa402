package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusDelivered = "delivered"
)

type Order struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	UserID     uuid.UUID   `db:"user_id" json:"user_id"`
	TotalCents int64       `db:"total_cents" json:"total_cents"`
	Status     string      `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	Items      []OrderItem `db:"-" json:"items"`
}

type OrderItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrderID        uuid.UUID `db:"order_id" json:"order_id"`
	ProductID      uuid.UUID `db:"product_id" json:"product_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
}

type Notification struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
