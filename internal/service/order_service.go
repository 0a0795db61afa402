package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"shop-flow/internal/apperr"
	"shop-flow/internal/events"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
)

type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type OrderService interface {
	Create(ctx context.Context, userID uuid.UUID, items []OrderItemInput) (*model.Order, error)
	Get(ctx context.Context, id uuid.UUID, requester *model.User, adminEmail string) (*model.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
}

type orderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	publisher events.EventPublisher
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, publisher events.EventPublisher) OrderService {
	return &orderService{orders: orders, products: products, publisher: publisher}
}

// Create snapshots the current product prices into order items and
// publishes an order-created event for the notification worker.
func (s *orderService) Create(ctx context.Context, userID uuid.UUID, items []OrderItemInput) (*model.Order, error) {
	if len(items) == 0 {
		return nil, apperr.BadRequest("order must contain at least one item")
	}

	order := &model.Order{
		UserID: userID,
		Status: model.OrderStatusPending,
	}

	for _, in := range items {
		product, err := s.products.FindByID(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, apperr.NotFound("product not found")
		}
		if product.CountInStock < in.Quantity {
			return nil, apperr.BadRequest("not enough stock for " + product.Name)
		}

		order.Items = append(order.Items, model.OrderItem{
			ProductID:      product.ID,
			Quantity:       in.Quantity,
			UnitPriceCents: product.PriceCents,
		})
		order.TotalCents += product.PriceCents * int64(in.Quantity)
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.publisher.PublishOrderCreated(created); err != nil {
			slog.Error("publishing order event failed", "order_id", created.ID, "error", err)
		}
	}()

	return created, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID, requester *model.User, adminEmail string) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}

	if order.UserID != requester.ID && requester.EffectiveRole(adminEmail) != model.RoleAdmin {
		return nil, apperr.Forbidden("you do not have permission to view this order")
	}

	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}
