package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/matriculapp/enrollment-api/internal/models"
	"github.com/matriculapp/enrollment-api/pkg/config"
)

func newAuthFixture(t *testing.T) (*AuthService, *stubState) {
	t.Helper()
	st := newStubState()
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
	return NewAuthService(newStubUOW(st), cfg, nil, nil), st
}

func seedUser(t *testing.T, st *stubState, email, password string, role models.UserRole, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           st.nextID("user"),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Ana Morales",
		Role:         role,
		Active:       active,
	}
	st.users[user.ID] = user
	return user
}

func TestAuthLoginAndValidate(t *testing.T) {
	svc, st := newAuthFixture(t)
	user := seedUser(t, st, "ana@example.com", "secret123", models.RoleEstudiante, true)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, user.ID, result.User.ID)
	require.NotNil(t, st.users[user.ID].LastLogin)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, models.RoleEstudiante, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, st := newAuthFixture(t)
	seedUser(t, st, "ana@example.com", "secret123", models.RoleEstudiante, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, st := newAuthFixture(t)
	seedUser(t, st, "ana@example.com", "secret123", models.RoleEstudiante, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
}

func TestAuthCurrentUser(t *testing.T) {
	svc, st := newAuthFixture(t)
	user := seedUser(t, st, "ana@example.com", "secret123", models.RoleEstudiante, true)

	info, err := svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, info.Email)
	require.Equal(t, models.RoleEstudiante, info.Role)

	_, err = svc.CurrentUser(context.Background(), "missing")
	require.Error(t, err)
}

func TestAuthValidateTokenRejectsTampered(t *testing.T) {
	svc, st := newAuthFixture(t)
	seedUser(t, st, "ana@example.com", "secret123", models.RoleEstudiante, true)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(result.AccessToken + "x")
	require.Error(t, err)
}
