package auth

import (
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:          "test-secret-that-is-long-enough-32b",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "prontosocorro-test",
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testConfig())

	pair, err := m.GenerateTokenPair(&domain.Claims{
		Subject:  "STF001",
		Username: "enf.maria",
		Name:     "Maria",
		Role:     domain.RoleNurse,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "STF001", claims.Subject)
	assert.Equal(t, "enf.maria", claims.Username)
	assert.Equal(t, domain.RoleNurse, claims.Role)

	claims, err = m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "STF001", claims.Subject)
}

func TestJWTManager_PatientClaims(t *testing.T) {
	m := NewJWTManager(testConfig())

	pair, err := m.GenerateTokenPair(&domain.Claims{Subject: "PS12345", Role: domain.RolePatient, PatientID: "PS12345"})
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RolePatient, claims.Role)
	assert.Equal(t, "PS12345", claims.PatientID)
}

func TestJWTManager_TypeMismatch(t *testing.T) {
	m := NewJWTManager(testConfig())
	pair, err := m.GenerateTokenPair(&domain.Claims{Subject: "STF001", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestJWTManager_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute
	m := NewJWTManager(cfg)

	pair, err := m.GenerateTokenPair(&domain.Claims{Subject: "STF001", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTManager_WrongSecretOrIssuer(t *testing.T) {
	pair, err := NewJWTManager(testConfig()).GenerateTokenPair(&domain.Claims{Subject: "STF001", Role: domain.RoleAdmin})
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "another-secret-that-is-long-enough"
	_, err = NewJWTManager(other).ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other = testConfig()
	other.Issuer = "someone-else"
	_, err = NewJWTManager(other).ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = NewJWTManager(testConfig()).ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_UnknownRoleRejected(t *testing.T) {
	m := NewJWTManager(testConfig())
	pair, err := m.GenerateTokenPair(&domain.Claims{Subject: "X1", Role: domain.Role("visitante")})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
