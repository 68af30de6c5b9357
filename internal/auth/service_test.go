package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgauth "github.com/seralvarez/casillero-backend/pkg/auth"
	"github.com/seralvarez/casillero-backend/pkg/auth/session"
	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

type fakeSessionManager struct {
	sessions map[string]string
	next     int
	revoked  []string
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: map[string]string{}}
}

func (f *fakeSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	f.next++
	token := "refresh-" + string(rune('a'+f.next))
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newAccessID := session.NewAccessID()
	f.next++
	token := "refresh-" + string(rune('a'+f.next))
	f.sessions[newAccessID] = token
	return newAccessID, token, nil
}

func (f *fakeSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(f.sessions, accessID)
	f.revoked = append(f.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "casillero-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
}

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email));`).Error)
	return db
}

func newAuthService(t *testing.T, db *gorm.DB) (Service, *fakeSessionManager) {
	t.Helper()

	sessions := newFakeSessionManager()
	svc, err := NewService(ServiceParams{
		Users:          NewRepository(db),
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: config.PasswordConfig{
			ArgonMemoryKB:    8192,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	})
	require.NoError(t, err)
	return svc, sessions
}

func TestRegisterNormalizesEmail(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "  Maria@Example.COM ",
		Password:    "correcthorse",
		DisplayName: "María",
	})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", user.Email)
	assert.Equal(t, enums.UserRoleCustomer, user.Role)

	var row models.User
	require.NoError(t, db.First(&row, "id = ?", user.ID).Error)
	assert.NotEqual(t, "correcthorse", row.PasswordHash)
	assert.True(t, row.IsActive)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)

	req := RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "MARIA@example.com"
	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRegisterValidation(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Email: "", Password: "correcthorse", DisplayName: "x"},
		{Email: "not-an-email", Password: "correcthorse", DisplayName: "x"},
		{Email: "a@b.com", Password: "short", DisplayName: "x"},
		{Email: "a@b.com", Password: "correcthorse", DisplayName: "  "},
	}
	for _, req := range cases {
		_, err := svc.Register(ctx, req)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestLoginIssuesTokens(t *testing.T) {
	db := setupAuthDB(t)
	svc, sessions := newAuthService(t, db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "Maria@Example.com", Password: "correcthorse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)
	_, ok := sessions.sessions[claims.ID]
	assert.True(t, ok, "refresh session must be stored under the jti")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "wrongpassword"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "correcthorse"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err = svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "correcthorse"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestRefreshRotatesSession(t *testing.T) {
	db := setupAuthDB(t)
	svc, _ := newAuthService(t, db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "correcthorse"})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	// the old refresh token is spent
	_, err = svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLogoutRevokesSession(t *testing.T) {
	db := setupAuthDB(t)
	svc, sessions := newAuthService(t, db)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "maria@example.com", Password: "correcthorse", DisplayName: "María"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, LoginRequest{Email: "maria@example.com", Password: "correcthorse"})
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), login.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims.ID))
	assert.Contains(t, sessions.revoked, claims.ID)
	_, ok := sessions.sessions[claims.ID]
	assert.False(t, ok)
}
