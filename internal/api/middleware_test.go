package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"shop-flow/internal/model"
	"shop-flow/internal/token"
)

type stubUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (s *stubUserRepo) Create(ctx context.Context, user *model.User) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users[id], nil
}

func (s *stubUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	return nil
}

func (s *stubUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

func (s *stubUserRepo) List(ctx context.Context) ([]model.User, error) {
	return nil, nil
}

func (s *stubUserRepo) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceToken string) error {
	return nil
}

func (s *stubUserRepo) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return nil, nil
}

type gateFixture struct {
	app   *fiber.App
	codec *token.Codec
	repo  *stubUserRepo
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	codec := token.NewCodec("test-secret", time.Hour, 30*24*time.Hour, 10*time.Minute)
	repo := &stubUserRepo{users: make(map[uuid.UUID]*model.User)}
	gate := NewAuthGate(codec, repo, "admin@gmail.com")

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", gate.Authenticate(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": CurrentUser(c).Email})
	})
	app.Get("/admin", gate.Authenticate(), gate.RestrictTo(model.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return &gateFixture{app: app, codec: codec, repo: repo}
}

func (f *gateFixture) addUser(email string) *model.User {
	user := &model.User{
		ID:                uuid.New(),
		Name:              "Test User",
		Email:             email,
		Role:              model.RoleUser,
		Active:            true,
		PasswordChangedAt: time.Now().Add(-time.Hour).Truncate(time.Second),
	}
	f.repo.users[user.ID] = user

	return user
}

func (f *gateFixture) request(t *testing.T, path, bearer string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(body, &parsed))
	require.NotEmpty(t, parsed.Errors)

	return parsed.Errors[0].Message
}

func TestAuthenticate_MissingToken(t *testing.T) {
	f := newGateFixture(t)

	resp := f.request(t, "/me", "")

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "you are not logged in, please log in to get access", errorMessage(t, resp))
}

func TestAuthenticate_MalformedToken(t *testing.T) {
	f := newGateFixture(t)

	resp := f.request(t, "/me", "not-a-jwt")

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid token, please log in again", errorMessage(t, resp))
}

func TestAuthenticate_UserGone(t *testing.T) {
	f := newGateFixture(t)

	access, _, err := f.codec.IssueAccess(uuid.New())
	require.NoError(t, err)

	resp := f.request(t, "/me", access)

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "the user belonging to this token no longer exists", errorMessage(t, resp))
}

func TestAuthenticate_DisabledUser(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("gone@example.com")
	user.Active = false

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	resp := f.request(t, "/me", access)

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "your account has been deactivated", errorMessage(t, resp))
}

func TestAuthenticate_PasswordChangedAfterIssue(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("rotated@example.com")

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	user.PasswordChangedAt = time.Now().Add(time.Minute).Truncate(time.Second)

	resp := f.request(t, "/me", access)

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "password was changed recently, please log in again", errorMessage(t, resp))
}

func TestAuthenticate_ValidToken(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("ok@example.com")

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	resp := f.request(t, "/me", access)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"email":"ok@example.com"}`, string(body))
}

func TestAuthenticate_CookieFallback(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("cookie@example.com")

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: access})

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRestrictTo_NonAdmin(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("member@example.com")

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	resp := f.request(t, "/admin", access)

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "you do not have permission to perform this action", errorMessage(t, resp))
}

func TestRestrictTo_AdminRole(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("boss@example.com")
	user.Role = model.RoleAdmin

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	resp := f.request(t, "/admin", access)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRestrictTo_AdminEmailOverride(t *testing.T) {
	f := newGateFixture(t)
	user := f.addUser("admin@gmail.com")
	require.Equal(t, model.RoleUser, user.Role)

	access, _, err := f.codec.IssueAccess(user.ID)
	require.NoError(t, err)

	resp := f.request(t, "/admin", access)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
