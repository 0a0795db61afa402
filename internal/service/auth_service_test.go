package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shop-flow/internal/apperr"
	"shop-flow/internal/model"
	"shop-flow/internal/service"
	"shop-flow/internal/token"
)

const (
	testSecret  = "this-is-a-test-secret-32-bytes!!"
	testBaseURL = "http://localhost:8000"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return uuid.Nil, &pgconn.PgError{Code: "23505"}
		}
	}
	id := uuid.New()
	clone := *user
	clone.ID = id
	m.users[id] = &clone
	return id, nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
		u.PasswordChangedAt = changedAt
	}
	return nil
}

func (m *memUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Active = active
	}
	return nil
}

func (m *memUserRepo) List(_ context.Context) ([]model.User, error) { return nil, nil }

func (m *memUserRepo) RegisterDeviceToken(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (m *memUserRepo) DeviceTokens(_ context.Context, _ uuid.UUID) ([]string, error) {
	return nil, nil
}

type memCredRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
	resets   map[uuid.UUID]*model.PasswordReset
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{
		sessions: map[uuid.UUID]*model.Session{},
		resets:   map[uuid.UUID]*model.PasswordReset{},
	}
}

func (m *memCredRepo) UpsertSession(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &model.Session{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memCredRepo) FindSessionByHash(_ context.Context, tokenHash string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memCredRepo) RotateSession(_ context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || s.TokenHash != oldHash {
		return false, nil
	}
	s.TokenHash = newHash
	s.ExpiresAt = expiresAt
	return true, nil
}

func (m *memCredRepo) DeleteSession(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memCredRepo) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.TokenHash == tokenHash {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memCredRepo) UpsertReset(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[userID] = &model.PasswordReset{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memCredRepo) RedeemReset(_ context.Context, tokenHash string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.resets {
		if r.TokenHash == tokenHash && time.Now().Before(r.ExpiresAt) {
			delete(m.resets, id)
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	resetURLs []string
	signups   int
	orders    int
}

func (p *recordingPublisher) PublishPasswordReset(_, resetURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetURLs = append(p.resetURLs, resetURL)
	return nil
}

func (p *recordingPublisher) PublishUserSignedUp(_ *model.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signups++
	return nil
}

func (p *recordingPublisher) PublishOrderCreated(_ *model.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders++
	return nil
}

func (p *recordingPublisher) lastResetURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.resetURLs) == 0 {
		return ""
	}
	return p.resetURLs[len(p.resetURLs)-1]
}

// =============================================================================
// Fixture
// =============================================================================

type authFixture struct {
	svc       service.AuthService
	users     *memUserRepo
	creds     *memCredRepo
	publisher *recordingPublisher
	codec     *token.Codec
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newMemUserRepo()
	creds := newMemCredRepo()
	publisher := &recordingPublisher{}
	codec := token.NewCodec(testSecret, time.Hour, 720*time.Hour, 10*time.Minute)

	return &authFixture{
		svc:       service.NewAuthService(users, creds, codec, publisher, testBaseURL, bcrypt.MinCost),
		users:     users,
		creds:     creds,
		publisher: publisher,
		codec:     codec,
	}
}

func (f *authFixture) signup(t *testing.T, email, password string) (*model.User, *service.TokenPair) {
	t.Helper()

	user, pair, err := f.svc.Signup(context.Background(), service.SignupInput{
		Name:     "Test User",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user, pair
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	return appErr.Kind
}

// =============================================================================
// Signup
// =============================================================================

func TestSignup_Success(t *testing.T) {
	f := newAuthFixture(t)

	user, pair := f.signup(t, "New@Example.com", "password123")

	require.Equal(t, "new@example.com", user.Email)
	require.Equal(t, model.RoleUser, user.Role)
	require.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))

	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// refresh slot holds the hash, never the plain token
	session, err := f.creds.FindSessionByHash(context.Background(), token.HashOpaque(pair.RefreshToken))
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, user.ID, session.UserID)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "dup@example.com", "password123")

	_, _, err := f.svc.Signup(context.Background(), service.SignupInput{
		Name:     "Other",
		Email:    "dup@example.com",
		Password: "password456",
	})
	require.Equal(t, apperr.KindConflict, kindOf(t, err))
	require.Contains(t, err.Error(), "email already in use")
}

// =============================================================================
// Login
// =============================================================================

func TestLogin_UnknownEmailAndWrongPasswordShareMessage(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "known@example.com", "password123")

	_, _, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "password123")
	_, _, errWrongPw := f.svc.Login(context.Background(), "known@example.com", "not-the-password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	require.Equal(t, errUnknown.Error(), errWrongPw.Error())
	require.Equal(t, "email or password incorrect", errUnknown.Error())
}

func TestLogin_DisabledAccountDistinctMessage(t *testing.T) {
	f := newAuthFixture(t)
	user, _ := f.signup(t, "gone@example.com", "password123")
	require.NoError(t, f.users.SetActive(context.Background(), user.ID, false))

	// disabled answer comes even with the correct password: the active
	// flag is checked before the password
	_, _, err := f.svc.Login(context.Background(), "gone@example.com", "password123")
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))
	require.Contains(t, err.Error(), "deactivated")

	_, _, err = f.svc.Login(context.Background(), "gone@example.com", "wrong-password")
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))
}

func TestLogin_SupersedesPreviousSession(t *testing.T) {
	f := newAuthFixture(t)
	_, firstPair := f.signup(t, "serial@example.com", "password123")

	_, secondPair, err := f.svc.Login(context.Background(), "serial@example.com", "password123")
	require.NoError(t, err)
	require.NotEqual(t, firstPair.RefreshToken, secondPair.RefreshToken)

	// the first session's refresh token is no longer accepted
	_, _, err = f.svc.Refresh(context.Background(), firstPair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))
}

// =============================================================================
// Refresh
// =============================================================================

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	user, pair := f.signup(t, "rotate@example.com", "password123")

	refreshed, newPair, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, refreshed.ID)
	require.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	require.NotEmpty(t, newPair.AccessToken)

	// the old token is a replay now
	_, _, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))

	// the new one works exactly once before its own rotation
	_, _, err = f.svc.Refresh(context.Background(), newPair.RefreshToken)
	require.NoError(t, err)
	_, _, err = f.svc.Refresh(context.Background(), newPair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))
}

func TestRefresh_Failures(t *testing.T) {
	f := newAuthFixture(t)
	user, pair := f.signup(t, "fail@example.com", "password123")

	_, _, err := f.svc.Refresh(context.Background(), "")
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))
	require.Contains(t, err.Error(), "missing")

	_, _, err = f.svc.Refresh(context.Background(), "never-issued")
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))
	require.Contains(t, err.Error(), "not recognized")

	// expired slot
	require.NoError(t, f.creds.UpsertSession(context.Background(), user.ID,
		token.HashOpaque(pair.RefreshToken), time.Now().Add(-time.Minute)))
	_, _, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))
	require.Contains(t, err.Error(), "expired")
}

func TestRefresh_DisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	user, pair := f.signup(t, "disabled@example.com", "password123")
	require.NoError(t, f.users.SetActive(context.Background(), user.ID, false))

	_, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))
}

// =============================================================================
// Logout
// =============================================================================

func TestLogout_ClearsSessionAndToleratesGarbage(t *testing.T) {
	f := newAuthFixture(t)
	_, pair := f.signup(t, "bye@example.com", "password123")

	f.svc.Logout(context.Background(), pair.RefreshToken)

	_, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))

	// never fails, valid session or not
	f.svc.Logout(context.Background(), "")
	f.svc.Logout(context.Background(), "garbage")
}

// =============================================================================
// Password reset
// =============================================================================

func TestForgotPassword_UnknownAndDisabled(t *testing.T) {
	f := newAuthFixture(t)
	user, _ := f.signup(t, "reset@example.com", "password123")

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")
	require.Equal(t, apperr.KindNotFound, kindOf(t, err))

	require.NoError(t, f.users.SetActive(context.Background(), user.ID, false))
	err = f.svc.ForgotPassword(context.Background(), "reset@example.com")
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))
}

func TestResetPassword_SingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "single@example.com", "oldpassword1")

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "single@example.com"))

	// the reset email goes out asynchronously
	require.Eventually(t, func() bool {
		return f.publisher.lastResetURL() != ""
	}, time.Second, 10*time.Millisecond)

	resetURL := f.publisher.lastResetURL()
	rawToken := resetURL[strings.LastIndex(resetURL, "/")+1:]

	user, pair, err := f.svc.ResetPassword(context.Background(), rawToken, "newpassword1")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword1")))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// second redemption fails: the token was consumed
	_, _, err = f.svc.ResetPassword(context.Background(), rawToken, "anotherpass1")
	require.Equal(t, apperr.KindValidation, kindOf(t, err))

	// and the new password logs in
	_, _, err = f.svc.Login(context.Background(), "single@example.com", "newpassword1")
	require.NoError(t, err)
}

func TestResetPassword_BogusToken(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.svc.ResetPassword(context.Background(), "no-such-token", "newpassword1")
	require.Equal(t, apperr.KindValidation, kindOf(t, err))
}

// =============================================================================
// Update password
// =============================================================================

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	user, _ := f.signup(t, "upd@example.com", "password123")

	_, err := f.svc.UpdatePassword(context.Background(), user, "not-current", "newpassword1")
	require.Equal(t, apperr.KindNotAuthenticated, kindOf(t, err))
	require.Contains(t, err.Error(), "current password is wrong")
}

func TestUpdatePassword_Success(t *testing.T) {
	f := newAuthFixture(t)
	user, _ := f.signup(t, "upd2@example.com", "password123")

	before := user.PasswordChangedAt
	pair, err := f.svc.UpdatePassword(context.Background(), user, "password123", "newpassword1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword1")))
	require.False(t, stored.PasswordChangedAt.Before(before))

	_, _, err = f.svc.Login(context.Background(), "upd2@example.com", "newpassword1")
	require.NoError(t, err)
}

// =============================================================================
// Deactivate
// =============================================================================

func TestDeactivateAccount_BlocksAllAuthPaths(t *testing.T) {
	f := newAuthFixture(t)
	user, pair := f.signup(t, "softdel@example.com", "password123")

	require.NoError(t, f.svc.DeactivateAccount(context.Background(), user))

	_, _, err := f.svc.Login(context.Background(), "softdel@example.com", "password123")
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))

	_, _, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindRefreshInvalid, kindOf(t, err))

	err = f.svc.ForgotPassword(context.Background(), "softdel@example.com")
	require.Equal(t, apperr.KindAccountDisabled, kindOf(t, err))
}
