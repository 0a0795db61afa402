package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shop-flow/internal/apperr"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
	"shop-flow/internal/token"
)

const currentUserKey = "currentUser"

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

// AuthGate authenticates requests before protected handlers run and
// enforces role restrictions after authentication.
type AuthGate struct {
	codec      *token.Codec
	users      repository.UserRepository
	adminEmail string
}

func NewAuthGate(codec *token.Codec, users repository.UserRepository, adminEmail string) *AuthGate {
	return &AuthGate{codec: codec, users: users, adminEmail: adminEmail}
}

// Authenticate resolves the caller's identity from the bearer header or
// the access-token cookie. Checks run in a fixed order: token presence,
// signature/expiry, user existence, active flag, password-changed-at
// against the token's issue time.
func (g *AuthGate) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractToken(c)
		if tokenString == "" {
			return apperr.NotAuthenticated("you are not logged in, please log in to get access")
		}

		claims, err := g.codec.VerifyAccess(tokenString)
		if err != nil {
			// expired and malformed tokens are not distinguished here
			return apperr.InvalidToken("invalid token, please log in again")
		}

		user, err := g.users.FindByID(c.Context(), claims.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.InvalidToken("the user belonging to this token no longer exists")
		}

		if !user.Active {
			return apperr.AccountDisabled("your account has been deactivated")
		}

		if user.PasswordChangedAt.After(claims.IssuedAt) {
			return apperr.PasswordChanged("password was changed recently, please log in again")
		}

		c.Locals(currentUserKey, user)

		return c.Next()
	}
}

// RestrictTo rejects authenticated callers whose effective role is not in
// the allowed set. It must be layered after Authenticate.
func (g *AuthGate) RestrictTo(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperr.NotAuthenticated("you are not logged in, please log in to get access")
		}

		if !slices.Contains(roles, user.EffectiveRole(g.adminEmail)) {
			return apperr.Forbidden("you do not have permission to perform this action")
		}

		return c.Next()
	}
}

// CurrentUser returns the identity attached by Authenticate, or nil.
func CurrentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals(currentUserKey).(*model.User)
	return user
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return c.Cookies(accessTokenCookie)
}

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()
		statusCode := c.Response().StatusCode()

		if err != nil {
			var appErr *apperr.Error
			var fiberErr *fiber.Error

			switch {
			case errors.As(err, &appErr):
				statusCode = appErr.Status()
			case errors.As(err, &fiberErr):
				statusCode = fiberErr.Code
			default:
				statusCode = fiber.StatusInternalServerError
			}
		}

		method := c.Method()
		path := c.Path()
		statusStr := fmt.Sprintf("%d", statusCode)

		httpRequestTotal.WithLabelValues(method, path, statusStr).Inc()
		httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}
