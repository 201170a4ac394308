package auth

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newValidator(t *testing.T) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256", SecretKey: testSecret, Issuer: "docprobe"})
	require.NoError(t, err)
	return v
}

func TestValidateToken(t *testing.T) {
	v := newValidator(t)

	valid, err := IssueToken(testSecret, "docprobe", "operator", []string{"probe:write"}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "docprobe", "operator", nil, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", "docprobe", "operator", nil, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken(testSecret, "someone-else", "operator", nil, time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken(testSecret, "docprobe", "", nil, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "valid with bearer prefix", token: "Bearer " + valid},
		{name: "empty", token: "  ", wantErr: ErrMissingToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "wrong key", token: wrongKey, wantErr: ErrInvalidSignature},
		{name: "wrong issuer", token: wrongIssuer, wantErr: ErrInvalidClaims},
		{name: "missing subject", token: noSubject, wantErr: ErrInvalidClaims},
		{name: "garbage", token: "not.a.jwt", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "operator", claims.Subject)
			assert.True(t, claims.HasScope("probe:write"))
			assert.False(t, claims.HasScope("admin"))
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	v := newValidator(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "operator", Issuer: "docprobe"},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "none", SecretKey: "x"})
	assert.Error(t, err)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "operator"}}
	got, ok := ClaimsFromContext(WithClaims(context.Background(), claims))
	require.True(t, ok)
	assert.Same(t, claims, got)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok, "third request inside the window")

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute + time.Second)
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok, "window slid past earlier requests")

	require.NoError(t, l.Reset(ctx, "a"))
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestSlidingWindowLimiter_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(10)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(ctx, "10.0.0.1")
	now = now.Add(30 * time.Second)
	_, _ = l.Allow(ctx, "10.0.0.2")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 0, l.Prune())
}

func TestSlidingWindowLimiter_StartPruningDropsIdleKeys(t *testing.T) {
	ctx := context.Background()
	var clock atomic.Int64
	clock.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())

	l := NewIPRateLimiter(10)
	l.now = func() time.Time { return time.Unix(0, clock.Load()) }

	for i := 0; i < 500; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		require.NoError(t, err)
	}
	require.Equal(t, 500, l.Len())

	stop := l.StartPruning(5 * time.Millisecond)
	defer stop()

	clock.Add(int64(time.Hour))
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSlidingWindowLimiter_StopEndsPruning(t *testing.T) {
	l := NewIPRateLimiter(10)
	stop := l.StartPruning(time.Millisecond)
	stop()

	_, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, l.Len())
}

func TestSlidingWindowLimiter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := NewIPRateLimiter(1).Allow(ctx, "k")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
