// Package google reverse geocodes station coordinates with the Google Maps
// Geocoding API through github.com/kelvins/geocoder.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

const provider = "google"

type reverseFunc func(geocoder.Location) ([]geocoder.Address, error)

// Client implements domain.Geocoder on top of the kelvins/geocoder package.
// The package keeps its API key in a global, so one key serves the process.
type Client struct {
	reverse reverseFunc
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient sets the process-wide Google API key and returns a client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	geocoder.ApiKey = apiKey
	return &Client{
		reverse: geocoder.GeocodingReverse,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

type lookup struct {
	addresses []geocoder.Address
	err       error
}

// ReverseGeocode returns the postcode and formatted address of the first
// result. The underlying library takes no context, so the call runs in its
// own goroutine and is abandoned on timeout or cancellation.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan lookup, 1)
	start := time.Now()
	go func() {
		addrs, err := c.reverse(geocoder.Location{Latitude: lat, Longitude: lon})
		done <- lookup{addresses: addrs, err: err}
	}()

	var (
		result domain.GeocodingResult
		err    error
	)
	select {
	case <-ctx.Done():
		err = fmt.Errorf("reverse geocode request: %w", ctx.Err())
	case l := <-done:
		result, err = toResult(l)
	}
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
	case result.Postcode == "":
		c.logger.Debug("google returned no postcode", "lat", lat, "lon", lon)
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	}
	return result, err
}

func toResult(l lookup) (domain.GeocodingResult, error) {
	if l.err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("google reverse geocode: %w", l.err)
	}
	// Results come most specific first; take the first carrying a postcode.
	for _, a := range l.addresses {
		if a.PostalCode != "" {
			return domain.GeocodingResult{
				FormattedAddress: a.FormattedAddress,
				PlaceName:        a.City,
				Postcode:         a.PostalCode,
			}, nil
		}
	}
	return domain.GeocodingResult{}, nil
}
