package cluster

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// fixture builds a year of facts for stations 1-3 (mild) and 4-6 (hot),
// plus station 7 abroad and station 8 missing December.
func fixture() ([]domain.Fact, []domain.Station) {
	var facts []domain.Fact
	var stations []domain.Station

	add := func(id int64, country string, group float64, months int) {
		stations = append(stations, domain.Station{
			Station: id, Name: fmt.Sprintf("S%d", id), Country: country,
			Lat: 42 + float64(id), Lon: float64(id), Elevation: 10 * float64(id),
		})
		for m := 1; m <= months; m++ {
			var ms domain.Measures
			temp := 5 + 15*group + float64(m) + 0.1*float64(id)
			ms[domain.MeasureTemp] = temp
			ms[domain.MeasureMax] = temp + 5
			ms[domain.MeasureMin] = temp - 5
			ms[domain.MeasureDewp] = temp - 2
			ms[domain.MeasureWdsp] = 10 + 10*group
			ms[domain.MeasureMxspd] = 20 + 10*group + 0.1*float64(id)
			ms[domain.MeasureSndp] = 0
			ms[domain.MeasurePrcp] = 1 + group
			for f := domain.MeasureFog; f <= domain.MeasureThun; f++ {
				ms[f] = group + 0.1*float64(id)
			}
			facts = append(facts, domain.Fact{
				Month:    domain.Month(fmt.Sprintf("2019-%02d", m)),
				Station:  id,
				Measures: ms,
			})
		}
	}
	for id := int64(1); id <= 3; id++ {
		add(id, "France", 0, 12)
	}
	for id := int64(4); id <= 6; id++ {
		add(id, "France", 1, 12)
	}
	add(7, "Spain", 1, 12)
	add(8, "France", 0, 11)
	return facts, stations
}

func TestNewHandler_FiltersAndDropsIncompleteProfiles(t *testing.T) {
	facts, stations := fixture()

	h, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, h.Stations())
}

func TestNewHandler_NoCountryKeepsAll(t *testing.T) {
	facts, stations := fixture()

	h, err := NewHandler(facts, stations, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, h.Stations())
}

func TestNewHandler_UnknownWeight(t *testing.T) {
	facts, stations := fixture()

	_, err := NewHandler(facts, stations, Options{Weights: map[string]float64{"HUMIDITY": 2}})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestHandler_FeaturesAreNormalised(t *testing.T) {
	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)

	x, err := h.Features([]string{"TEMP", ColumnLatitude, "SNDP"})
	require.NoError(t, err)

	r, c := x.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 12+1+12, c)
	for i := range r {
		for j := range c {
			v := x.At(i, j)
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	// Latitude spans stations 1 to 8 (station 8 has facts, only an
	// incomplete profile).
	assert.InDelta(t, 0, x.At(0, 12), 1e-12)
	assert.InDelta(t, 5.0/7, x.At(5, 12), 1e-12)
	// Constant snow depth normalises to 0.
	assert.Equal(t, 0.0, x.At(3, 13))
}

func TestHandler_WeightsScaleColumns(t *testing.T) {
	facts, stations := fixture()
	plain, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)
	weighted, err := NewHandler(facts, stations, Options{Country: "France", Weights: map[string]float64{"TEMP": 3, ColumnElevation: 2}})
	require.NoError(t, err)

	px, err := plain.Features([]string{"TEMP", ColumnElevation})
	require.NoError(t, err)
	wx, err := weighted.Features([]string{"TEMP", ColumnElevation})
	require.NoError(t, err)

	assert.InDelta(t, 3*px.At(4, 5), wx.At(4, 5), 1e-12)
	assert.InDelta(t, 2*px.At(4, 12), wx.At(4, 12), 1e-12)
}

func TestHandler_SeasonalProfile(t *testing.T) {
	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "France", Profile: ProfileSeasonal})
	require.NoError(t, err)

	x, err := h.Features([]string{"TEMP", "RAIN"})
	require.NoError(t, err)
	_, c := x.Dims()
	assert.Equal(t, 8, c)
	// Station 8 lacks December, but autumn still has October and November.
	assert.Contains(t, h.Stations(), int64(8))
}

func TestHandler_GetClusters(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)

	a, err := h.GetClusters("Cluster_TEMP", []string{"TEMP"}, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, a.Ks)
	require.Len(t, a.Labels, 3)
	k2 := a.Labels[0]
	assert.Equal(t, k2[0], k2[1])
	assert.Equal(t, k2[0], k2[2])
	assert.Equal(t, k2[3], k2[4])
	assert.NotEqual(t, k2[0], k2[3])
	for _, labels := range a.Labels {
		for _, l := range labels {
			assert.GreaterOrEqual(t, l, 1, "labels are 1-based")
		}
	}

	inertia, sil, ok := h.Scores().Get("Cluster_TEMP", 2)
	require.True(t, ok)
	assert.Greater(t, inertia, 0.0)
	assert.Greater(t, sil, 0.9)
	assert.Equal(t, fake.Now(), h.Scores().ComputedAt)
}

func TestHandler_ScoresAccumulate(t *testing.T) {
	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)

	_, err = h.GetClusters("A", []string{"TEMP"}, 2, 3)
	require.NoError(t, err)
	_, err = h.GetClusters("B", []string{"WDSP"}, 3, 4)
	require.NoError(t, err)

	s := h.Scores()
	assert.Equal(t, []string{"A", "B"}, s.Names())
	assert.Equal(t, []int{2, 3, 4}, s.Ks())
	assert.Equal(t, []string{"K", "A_inertia", "A_silhouette", "B_inertia", "B_silhouette"}, s.Header())

	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "2", records[0][0])
	assert.Equal(t, "", records[0][3], "B has no k=2")
	assert.Equal(t, "", records[2][1], "A has no k=4")
}

func TestHandler_GetClustersErrors(t *testing.T) {
	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "France"})
	require.NoError(t, err)

	_, err = h.GetClusters("x", []string{"TEMP"}, 1, 3)
	assert.ErrorIs(t, err, ErrInvalidKRange)

	_, err = h.GetClusters("x", []string{"TEMP"}, 4, 3)
	assert.ErrorIs(t, err, ErrInvalidKRange)

	_, err = h.GetClusters("x", []string{"HUMIDITY"}, 2, 3)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = h.GetClusters("x", []string{"TEMP"}, 2, 6)
	assert.ErrorIs(t, err, ErrTooFewStations)
}

func TestHandler_NoStations(t *testing.T) {
	facts, stations := fixture()
	h, err := NewHandler(facts, stations, Options{Country: "Atlantis"})
	require.NoError(t, err)

	_, err = h.GetClusters("x", []string{"TEMP"}, 2, 3)
	assert.ErrorIs(t, err, ErrTooFewStations)
}
