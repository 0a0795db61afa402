package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shop-flow/internal/apperr"
	"shop-flow/internal/s3"
	"shop-flow/internal/service"
)

type ProductHandler struct {
	productService service.ProductService
	validate       *validator.Validate
	filePresigner  *s3.FilePresigner
}

func NewProductHandler(productService service.ProductService, presigner *s3.FilePresigner) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		validate:       validator.New(),
		filePresigner:  presigner,
	}
}

type ProductRequest struct {
	Name         string  `json:"name" validate:"required,min=2"`
	Description  string  `json:"description"`
	PriceCents   int64   `json:"price_cents" validate:"required,gte=0"`
	CountInStock int     `json:"count_in_stock" validate:"gte=0"`
	ImageURL     *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	products, err := h.productService.List(c.Context(), page, limit)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"products": products})
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.productService.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"product": product})
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	product, err := h.productService.Create(c.Context(), service.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		CountInStock: req.CountInStock,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"product": product})
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	product, err := h.productService.Update(c.Context(), id, service.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		CountInStock: req.CountInStock,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"product": product})
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.productService.Delete(c.Context(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) AddReview(c *fiber.Ctx) error {
	productID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	review, err := h.productService.AddReview(c.Context(), productID, CurrentUser(c).ID, req.Rating, req.Comment)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"review": review})
}

func (h *ProductHandler) ListReviews(c *fiber.Ctx) error {
	productID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	reviews, err := h.productService.ListReviews(c.Context(), productID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"reviews": reviews})
}

// ImageUploadURL hands an admin a presigned PUT URL for a product image.
func (h *ProductHandler) ImageUploadURL(c *fiber.Ctx) error {
	objectKey := "product-images/" + uuid.New().String() + ".jpg"

	uploadURL, err := h.filePresigner.PresignedUploadURL(c.Context(), objectKey)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"upload_url":      uploadURL,
		"final_image_url": h.filePresigner.ObjectURL(objectKey),
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid id format")
	}
	return id, nil
}
