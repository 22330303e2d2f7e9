package geocache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (g *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	g.calls++
	return g.result, g.err
}

func TestCachedGeocoder_ReverseHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Postcode: "94310"}}
	m := observability.NewMetricsForTesting()
	c := NewCachedGeocoder(inner, 10, m)

	r1, err := c.ReverseGeocode(context.Background(), 48.716667, 2.383333)
	require.NoError(t, err)
	r2, err := c.ReverseGeocode(context.Background(), 48.716667, 2.383333)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_EmptyPostcodeNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = c.ReverseGeocode(context.Background(), 45.5, -5.0)
	_, _ = c.ReverseGeocode(context.Background(), 45.5, -5.0)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, c.cache.len())
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	c := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := c.ReverseGeocode(context.Background(), 43.6, 1.4)
	require.Error(t, err)
	assert.Equal(t, 0, c.cache.len())
}

func TestLRUCache_GetPut(t *testing.T) {
	c := newLRUCache(10)

	c.put("a", domain.GeocodingResult{Postcode: "75001"})
	c.put("b", domain.GeocodingResult{Postcode: "69001"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "75001", result.Postcode)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodingResult{Postcode: "A"})
	c.put("b", domain.GeocodingResult{Postcode: "B"})
	c.put("c", domain.GeocodingResult{Postcode: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result.Postcode)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result.Postcode)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodingResult{Postcode: "A"})
	c.put("b", domain.GeocodingResult{Postcode: "B"})

	c.get("a")

	// "b" is now least recently used.
	c.put("c", domain.GeocodingResult{Postcode: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodingResult{Postcode: "A1"})
	c.put("a", domain.GeocodingResult{Postcode: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.Postcode)
	assert.Equal(t, 1, c.len())
}
