package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"shop-flow/internal/apperr"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
)

type ProductInput struct {
	Name         string
	Description  string
	PriceCents   int64
	CountInStock int
	ImageURL     *string
}

type ProductService interface {
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, page, limit int) ([]model.Product, error)
	Update(ctx context.Context, id uuid.UUID, in ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*model.Review, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]model.Review, error)
}

type productService struct {
	products repository.ProductRepository
	reviews  repository.ReviewRepository
}

func NewProductService(products repository.ProductRepository, reviews repository.ReviewRepository) ProductService {
	return &productService{products: products, reviews: reviews}
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	product := &model.Product{
		Name:         in.Name,
		Description:  in.Description,
		PriceCents:   in.PriceCents,
		CountInStock: in.CountInStock,
		ImageURL:     in.ImageURL,
	}

	return s.products.Create(ctx, product)
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NotFound("product not found")
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, page, limit int) ([]model.Product, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return s.products.List(ctx, limit, (page-1)*limit)
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, in ProductInput) (*model.Product, error) {
	product := &model.Product{
		ID:           id,
		Name:         in.Name,
		Description:  in.Description,
		PriceCents:   in.PriceCents,
		CountInStock: in.CountInStock,
		ImageURL:     in.ImageURL,
	}

	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperr.NotFound("product not found")
	}

	return s.products.FindByID(ctx, id)
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("product not found")
	}

	return nil
}

func (s *productService) AddReview(ctx context.Context, productID, userID uuid.UUID, rating int, comment string) (*model.Review, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NotFound("product not found")
	}

	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
	}

	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("you have already reviewed this product")
		}
		return nil, err
	}

	return created, nil
}

func (s *productService) ListReviews(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}
