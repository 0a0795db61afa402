package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"shop-flow/internal/apperr"
	"shop-flow/internal/service"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
	}
}

type RegisterDeviceTokenRequest struct {
	DeviceToken string `json:"device_token" validate:"required"`
}

// List returns every account. Admin only.
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.userService.List(c.Context())
	if err != nil {
		return err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, newUserResponse(&users[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"users": responses})
}

func (h *UserHandler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req RegisterDeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	if err := h.userService.RegisterDeviceToken(c.Context(), CurrentUser(c).ID, req.DeviceToken); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "device token registered"})
}

func (h *UserHandler) ListNotifications(c *fiber.Ctx) error {
	notifications, err := h.userService.Notifications(c.Context(), CurrentUser(c).ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"notifications": notifications})
}

func (h *UserHandler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	marked, err := h.userService.MarkNotificationRead(c.Context(), id, CurrentUser(c).ID)
	if err != nil {
		return err
	}
	if !marked {
		return apperr.NotFound("notification not found")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "notification marked as read"})
}
