package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoterFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	v, err := voterFromRequest(req)
	require.NoError(t, err)
	assert.Nil(t, v.UserID)

	req.Header.Set(UserIDHeader, " 42 ")
	v, err = voterFromRequest(req)
	require.NoError(t, err)
	require.NotNil(t, v.UserID)
	assert.Equal(t, int64(42), *v.UserID)
	assert.Equal(t, "user:42", v.Key())

	for _, bad := range []string{"0", "-3", "abc"} {
		req.Header.Set(UserIDHeader, bad)
		_, err = voterFromRequest(req)
		assert.ErrorIs(t, err, errBadUserID, bad)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", clientIP(req))

	req.RemoteAddr = "10.0.0.8"
	assert.Equal(t, "10.0.0.8", clientIP(req))
}

func TestIPLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"), "refills at the configured rate")

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 1, l.size(), "idle visitors are swept")
}

func TestIPLimiter_ZeroRateIsUnlimited(t *testing.T) {
	l := newIPLimiter(0, 0)
	l.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	allowed := 0
	for range 10 {
		if l.allow("a") {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}
