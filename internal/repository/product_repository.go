package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shop-flow/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, limit, offset int) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type postgresProductRepository struct {
	db *sqlx.DB
}

func NewPostgresProductRepository(db *sqlx.DB) ProductRepository {
	return &postgresProductRepository{db: db}
}

func (r *postgresProductRepository) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	query := `
		INSERT INTO products (name, description, price_cents, count_in_stock, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		product.Name, product.Description, product.PriceCents, product.CountInStock, product.ImageURL,
	)
	if err := row.Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt); err != nil {
		return nil, err
	}

	return product, nil
}

func (r *postgresProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	query := `SELECT id, name, description, price_cents, count_in_stock, image_url, created_at, updated_at FROM products WHERE id = $1`
	err := r.db.GetContext(ctx, &product, query, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *postgresProductRepository) List(ctx context.Context, limit, offset int) ([]model.Product, error) {
	var products []model.Product
	query := `SELECT id, name, description, price_cents, count_in_stock, image_url, created_at, updated_at FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &products, query, limit, offset)
	return products, err
}

func (r *postgresProductRepository) Update(ctx context.Context, product *model.Product) (bool, error) {
	query := `
		UPDATE products SET name = $2, description = $3, price_cents = $4, count_in_stock = $5, image_url = $6, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Description, product.PriceCents, product.CountInStock, product.ImageURL,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *postgresProductRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
