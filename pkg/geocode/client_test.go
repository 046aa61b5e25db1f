package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthrough_WithCoords(t *testing.T) {
	lat, lng := 6.5244, 3.3792

	r, err := Passthrough{}.Geocode(context.Background(), AddressInput{Street: "1 Broad St", Lat: &lat, Lng: &lng})
	require.NoError(t, err)
	assert.True(t, r.Matched())
	assert.Equal(t, PrecisionAddress, r.Precision)
	assert.Equal(t, "submitter", r.Source)
	assert.InDelta(t, lat, *r.Lat, 1e-9)
	assert.InDelta(t, lng, *r.Lng, 1e-9)

	// The result must not alias the caller's values.
	lat = 0
	assert.InDelta(t, 6.5244, *r.Lat, 1e-9)
}

func TestPassthrough_WithoutCoords(t *testing.T) {
	lat := 6.5

	for _, in := range []AddressInput{{City: "Lagos"}, {City: "Lagos", Lat: &lat}} {
		r, err := Passthrough{}.Geocode(context.Background(), in)
		require.NoError(t, err)
		assert.False(t, r.Matched())
		assert.Nil(t, r.Lat)
		assert.Nil(t, r.Lng)
		assert.Equal(t, PrecisionCity, r.Precision)
	}
}

func TestPassthrough_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Passthrough{}.Geocode(ctx, AddressInput{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient(t *testing.T) {
	for _, p := range []string{"", "passthrough"} {
		c, err := NewClient(p)
		require.NoError(t, err)
		assert.IsType(t, Passthrough{}, c)
	}

	_, err := NewClient("census")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestResultMatched_Nil(t *testing.T) {
	var r *Result
	assert.False(t, r.Matched())
}
