package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"shop-flow/internal/model"
)

const (
	SubjectPasswordReset = "user.password_reset"
	SubjectUserSignedUp  = "user.signed_up"
	SubjectOrderCreated  = "order.created"
)

// EventPublisher delivers outbound notifications. Callers treat it as
// fire-and-forget; delivery failures are logged, never surfaced to the
// HTTP response.
type EventPublisher interface {
	PublishPasswordReset(email, resetURL string) error
	PublishUserSignedUp(user *model.User) error
	PublishOrderCreated(order *model.Order) error
}

type PasswordResetEvent struct {
	EventType string    `json:"event_type"`
	Email     string    `json:"email"`
	ResetURL  string    `json:"reset_url"`
	IssuedAt  time.Time `json:"issued_at"`
}

type UserSignedUpEvent struct {
	EventType string    `json:"event_type"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

type OrderCreatedEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (EventPublisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}

	return &NatsPublisher{conn: nc}, nil
}

func (p *NatsPublisher) PublishPasswordReset(email, resetURL string) error {
	event := PasswordResetEvent{
		EventType: SubjectPasswordReset,
		Email:     email,
		ResetURL:  resetURL,
		IssuedAt:  time.Now(),
	}

	return p.publish(SubjectPasswordReset, event)
}

func (p *NatsPublisher) PublishUserSignedUp(user *model.User) error {
	event := UserSignedUpEvent{
		EventType: SubjectUserSignedUp,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
	}

	return p.publish(SubjectUserSignedUp, event)
}

func (p *NatsPublisher) PublishOrderCreated(order *model.Order) error {
	event := OrderCreatedEvent{
		EventType:  SubjectOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
	}

	return p.publish(SubjectOrderCreated, event)
}

func (p *NatsPublisher) publish(subject string, event any) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshalling event failed", "subject", subject, "error", err)
		return err
	}

	if err := p.conn.Publish(subject, eventJSON); err != nil {
		slog.Error("publishing to NATS failed", "subject", subject, "error", err)
		return err
	}

	slog.Info("published event", "subject", subject)

	return nil
}
