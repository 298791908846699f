package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(
		"access-secret-at-least-32-bytes-long!!",
		"refresh-secret-at-least-32-bytes-long!",
		time.Minute,
		time.Hour,
	)
	require.NoError(t, err)
	return sm
}

func TestAccessTokenRoundTrip(t *testing.T) {
	sm := testManager(t)
	userID := uuid.New()

	token, err := sm.IssueAccessToken(Claims{
		UserID:     userID.String(),
		OperatorID: "OP001",
		Role:       RoleOperator,
	})
	require.NoError(t, err)

	claims, err := sm.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, userID.String(), claims.UserID)
	require.Equal(t, "OP001", claims.OperatorID)
	require.Equal(t, RoleOperator, claims.Role)
}

func TestAccessTokenRejectedByRefreshKey(t *testing.T) {
	sm := testManager(t)
	token, err := sm.IssueAccessToken(Claims{UserID: uuid.New().String(), Role: RoleAdmin})
	require.NoError(t, err)

	_, err = sm.ValidateRefreshToken(token)
	require.Error(t, err)
}

func TestRefreshTokenCarriesRefreshID(t *testing.T) {
	sm := testManager(t)
	token, err := sm.IssueRefreshToken(Claims{UserID: uuid.New().String(), Role: RoleAdmin}, "rid-123")
	require.NoError(t, err)

	claims, err := sm.ValidateRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, "rid-123", claims.RefreshID)
}

func TestNewSessionManagerRejectsShortSecrets(t *testing.T) {
	_, err := NewSessionManager("short", "refresh-secret-at-least-32-bytes-long!", time.Minute, time.Hour)
	require.Error(t, err)
}
