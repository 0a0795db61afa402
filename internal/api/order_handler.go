package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shop-flow/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
	validate     *validator.Validate
	adminEmail   string
}

func NewOrderHandler(orderService service.OrderService, adminEmail string) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		validate:     validator.New(),
		adminEmail:   adminEmail,
	}
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orderService.Create(c.Context(), CurrentUser(c).ID, items)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": order})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	orders, err := h.orderService.ListByUser(c.Context(), CurrentUser(c).ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orders": orders})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orderService.Get(c.Context(), id, CurrentUser(c), h.adminEmail)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"order": order})
}
