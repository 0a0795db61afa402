package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"shop-flow/internal/model"
	"shop-flow/internal/service"
)

const (
	accessTokenCookie  = "jwt"
	refreshTokenCookie = "refresh_token"

	// echoed on refresh for clients that cannot read cookies
	accessTokenHeader = "x-access-token"
)

type AuthHandler struct {
	authService   service.AuthService
	validate      *validator.Validate
	secureCookies bool
}

func NewAuthHandler(authService service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		validate:      validator.New(),
		secureCookies: secureCookies,
	}
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type SignupRequest struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	user, pair, err := h.authService.Signup(c.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setAuthCookies(c, pair)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": newUserResponse(user)})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	user, pair, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookies(c, pair)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": newUserResponse(user)})
}

// Logout clears both auth cookies. It succeeds whether or not the caller
// still holds a valid session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.authService.Logout(c.Context(), c.Cookies(refreshTokenCookie))
	h.clearAuthCookies(c)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	user, pair, err := h.authService.Refresh(c.Context(), c.Cookies(refreshTokenCookie))
	if err != nil {
		return err
	}

	h.setAuthCookies(c, pair)
	c.Set(accessTokenHeader, pair.AccessToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": newUserResponse(user)})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	if err := h.authService.ForgotPassword(c.Context(), req.Email); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "reset token sent to email"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	user, pair, err := h.authService.ResetPassword(c.Context(), c.Params("token"), req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookies(c, pair)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": newUserResponse(user)})
}

func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	var req UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot parse JSON")
	}

	if err := h.validate.Struct(&req); err != nil {
		return validationError(err)
	}

	user := CurrentUser(c)
	pair, err := h.authService.UpdatePassword(c.Context(), user, req.PasswordCurrent, req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookies(c, pair)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": newUserResponse(user)})
}

func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": newUserResponse(CurrentUser(c))})
}

func (h *AuthHandler) DeleteMe(c *fiber.Ctx) error {
	if err := h.authService.DeactivateAccount(c.Context(), CurrentUser(c)); err != nil {
		return err
	}

	h.clearAuthCookies(c)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, pair *service.TokenPair) {
	h.setCookie(c, accessTokenCookie, pair.AccessToken, pair.AccessExpires)
	h.setCookie(c, refreshTokenCookie, pair.RefreshToken, pair.RefreshExpires)
}

func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	h.setCookie(c, accessTokenCookie, "", expired)
	h.setCookie(c, refreshTokenCookie, "", expired)
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
