package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shop-flow/internal/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) (*model.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error)
}

type postgresReviewRepository struct {
	db *sqlx.DB
}

func NewPostgresReviewRepository(db *sqlx.DB) ReviewRepository {
	return &postgresReviewRepository{db: db}
}

func (r *postgresReviewRepository) Create(ctx context.Context, review *model.Review) (*model.Review, error) {
	query := `
		INSERT INTO reviews (product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	row := r.db.QueryRowxContext(ctx, query, review.ProductID, review.UserID, review.Rating, review.Comment)
	if err := row.Scan(&review.ID, &review.CreatedAt); err != nil {
		return nil, err
	}

	return review, nil
}

func (r *postgresReviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	var reviews []model.Review
	query := `SELECT id, product_id, user_id, rating, comment, created_at FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &reviews, query, productID)
	return reviews, err
}
