package auth

import (
	"testing"
	"time"

	"task_api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-testing"

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(clock *fakeClock) *TokenManager {
	m := NewTokenManager(&config.JWTConfig{Secret: testSecret, TTL: time.Hour})
	if clock != nil {
		m.now = clock.Now
	}
	return m
}

func TestGenerate_ValidToken(t *testing.T) {
	m := newTestManager(nil)

	token, err := m.Generate(123, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 123, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "123", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidate_InvalidSecret(t *testing.T) {
	token, err := newTestManager(nil).Generate(789, "bob")
	require.NoError(t, err)

	other := NewTokenManager(&config.JWTConfig{Secret: "wrong-secret", TTL: time.Hour})
	claims, err := other.Validate(token)

	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_AcceptedThenExpired(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(clock)

	token, err := m.Generate(101, "carol")
	require.NoError(t, err)

	// Accepted immediately
	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 101, claims.UserID)

	// Still accepted just before expiry
	clock.Advance(59 * time.Minute)
	_, err = m.Validate(token)
	require.NoError(t, err)

	// Rejected once the hour has elapsed
	clock.Advance(2 * time.Minute)
	claims, err = m.Validate(token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_MalformedToken(t *testing.T) {
	m := newTestManager(nil)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "Empty token",
			token: "",
		},
		{
			name:  "Random string",
			token: "not-a-valid-jwt-token",
		},
		{
			name:  "Incomplete JWT",
			token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := m.Validate(tt.token)

			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		UserID:   999,
		Username: "mallory",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parsed, err := newTestManager(nil).Validate(tokenString)

	assert.Nil(t, parsed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsOtherHMACAlgorithm(t *testing.T) {
	claims := Claims{
		UserID: 999,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestManager(nil).Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RequiresExpiry(t *testing.T) {
	claims := Claims{UserID: 5, Username: "dave"}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestManager(nil).Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_TTL(t *testing.T) {
	m := NewTokenManager(&config.JWTConfig{Secret: testSecret, TTL: 30 * time.Minute})

	assert.Equal(t, 30*time.Minute, m.TTL())
}

func BenchmarkGenerate(b *testing.B) {
	m := newTestManager(nil)
	for i := 0; i < b.N; i++ {
		m.Generate(123, "alice")
	}
}

func BenchmarkValidate(b *testing.B) {
	m := newTestManager(nil)
	token, _ := m.Generate(123, "alice")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Validate(token)
	}
}
