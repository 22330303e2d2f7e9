package domain

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// Geocoding outcomes recorded on Station.GeoSource.
const (
	GeoSourceReverse  = "reverse"
	GeoSourceFailed   = "failed"
	GeoSourceOriginal = "original"
)

// EnrichStationWithGeocoding attempts to attach a French département to a
// station by reverse geocoding its coordinates. If geocoder is nil or the
// lookup fails, the station is returned with GeoSource set accordingly
// (graceful degradation).
func EnrichStationWithGeocoding(ctx context.Context, st Station, geocoder Geocoder, logger *slog.Logger) Station {
	if geocoder == nil {
		return st
	}
	if st.Lat == 0 && st.Lon == 0 {
		st.GeoSource = GeoSourceOriginal
		return st
	}

	result, err := geocoder.ReverseGeocode(ctx, st.Lat, st.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"station", st.Station,
			"lat", st.Lat,
			"lon", st.Lon,
			"error", err,
		)
		st.GeoSource = GeoSourceFailed
		return st
	}

	dep := DepartementFromPostcode(result.Postcode)
	if dep == "" {
		st.GeoSource = GeoSourceOriginal
		return st
	}
	st.Departement = dep
	st.FormattedAddress = result.FormattedAddress
	st.GeoSource = GeoSourceReverse
	return st
}

// DepartementFromPostcode derives the département code from a French postcode.
// Corsica splits at 20200 between 2A and 2B; overseas postcodes (97xxx) map to
// three digit codes. Anything else that is not five digits yields "".
func DepartementFromPostcode(postcode string) string {
	postcode = strings.TrimSpace(postcode)
	if len(postcode) != 5 {
		return ""
	}
	n, err := strconv.Atoi(postcode)
	if err != nil || n < 1000 {
		return ""
	}

	switch {
	case n >= 20000 && n < 20200:
		return "2A"
	case n >= 20200 && n < 21000:
		return "2B"
	case n >= 97000:
		return postcode[:3]
	default:
		return postcode[:2]
	}
}
