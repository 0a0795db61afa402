package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shop-flow/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) (*model.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
}

type postgresOrderRepository struct {
	db *sqlx.DB
}

func NewPostgresOrderRepository(db *sqlx.DB) OrderRepository {
	return &postgresOrderRepository{db: db}
}

func (r *postgresOrderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowxContext(ctx,
		`INSERT INTO orders (user_id, total_cents, status) VALUES ($1, $2, $3) RETURNING id, created_at`,
		order.UserID, order.TotalCents, order.Status,
	)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		row := tx.QueryRowxContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents) VALUES ($1, $2, $3, $4) RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPriceCents,
		)
		if err := row.Scan(&item.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *postgresOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.GetContext(ctx, &order,
		`SELECT id, user_id, total_cents, status, created_at FROM orders WHERE id = $1`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &order.Items,
		`SELECT id, order_id, product_id, quantity, unit_price_cents FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *postgresOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.SelectContext(ctx, &orders,
		`SELECT id, user_id, total_cents, status, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return orders, err
}
