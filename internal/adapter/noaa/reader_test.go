package noaa

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

const testHeader = `"STATION","DATE","LATITUDE","LONGITUDE","ELEVATION","NAME","TEMP","TEMP_ATTRIBUTES","DEWP","WDSP","MXSPD","MAX","MIN","PRCP","SNDP","FRSHTT"`

var testCountries = map[string]string{"FR": "France", "SP": "Spain"}

func orlyCSV(days ...string) string {
	var b strings.Builder
	b.WriteString(testHeader + "\n")
	for _, d := range days {
		b.WriteString(`"07149099999","` + d + `","48.716667","2.383333","89.0","PARIS-ORLY, FR","41.0"," 24","35.0","10.0","15.0","50.0","32.0","0.10","999.9","010000"` + "\n")
	}
	return b.String()
}

const madridCSV = testHeader + "\n" +
	`"08221099999","2019-01-01","40.466667","-3.55","609.0","MADRID BARAJAS, SP","45.0"," 24","30.0","5.0","9.9","55.0","35.0","0.00","999.9","000000"` + "\n" +
	`"08221099999","2019-01-02","40.466667","-3.55","609.0","MADRID BARAJAS, SP","","","","","","","","","",""` + "\n"

const unknownCountryCSV = testHeader + "\n" +
	`"99999099999","2019-01-01","50.0","10.0","100.0","SOMEWHERE, ZZ","45.0"," 24","30.0","5.0","9.9","55.0","35.0","0.00","999.9","000000"` + "\n"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarGz(t *testing.T, files map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "2019/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for _, name := range order {
		body := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return gzipBytes(t, buf.Bytes())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, data []byte) ([]domain.DailyRecord, Stats) {
	t.Helper()
	r := NewReader(t.TempDir(), testCountries, discardLogger())
	var recs []domain.DailyRecord
	stats, err := r.Read(context.Background(), bytes.NewReader(data), func(rec domain.DailyRecord) {
		recs = append(recs, rec)
	})
	require.NoError(t, err)
	return recs, stats
}

func TestRead_TarArchive(t *testing.T) {
	data := tarGz(t, map[string]string{
		"2019/07149099999.csv": orlyCSV("2019-01-01", "2019-01-02"),
		"2019/08221099999.csv": madridCSV,
		"2019/99999099999.csv": unknownCountryCSV,
	}, []string{"2019/07149099999.csv", "2019/08221099999.csv", "2019/99999099999.csv"})

	recs, stats := collect(t, data)

	require.Len(t, recs, 3)
	assert.Equal(t, "PARIS-ORLY", recs[0].Name)
	assert.Equal(t, "France", recs[0].Country)
	assert.InDelta(t, 5.0, recs[0].Measures[domain.MeasureTemp], 1e-9)
	assert.InDelta(t, 1.0, recs[0].Measures[domain.MeasureRain], 1e-9)
	assert.Equal(t, "Spain", recs[2].Country)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, map[string]int{"incomplete": 1, "country": 1}, stats.Rejected)
}

func TestRead_ConcatenatedCSV(t *testing.T) {
	// Concatenated station files repeat their header line.
	data := gzipBytes(t, []byte(orlyCSV("2019-01-01")+madridCSV))

	recs, stats := collect(t, data)

	require.Len(t, recs, 2)
	assert.Equal(t, int64(7149099999), recs[0].Station)
	assert.Equal(t, int64(8221099999), recs[1].Station)
	assert.Equal(t, 1, stats.Rejected["header"])
	assert.Equal(t, 1, stats.Rejected["incomplete"])
}

func TestRead_NotGzip(t *testing.T) {
	r := NewReader(t.TempDir(), testCountries, discardLogger())
	_, err := r.Read(context.Background(), strings.NewReader(testHeader), func(domain.DailyRecord) {})
	require.Error(t, err)
}

func TestRead_MissingColumn(t *testing.T) {
	r := NewReader(t.TempDir(), testCountries, discardLogger())
	data := gzipBytes(t, []byte("STATION,DATE,NAME\n1,2019-01-01,X\n"))
	_, err := r.Read(context.Background(), bytes.NewReader(data), func(domain.DailyRecord) {})
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestReadYear(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2019.tar.gz"),
		tarGz(t, map[string]string{"a.csv": orlyCSV("2019-03-01")}, []string{"a.csv"}), 0o600))

	r := NewReader(dir, testCountries, discardLogger())
	var n int
	stats, err := r.ReadYear(context.Background(), 2019, func(domain.DailyRecord) { n++ })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, stats.Kept)

	_, err = r.ReadYear(context.Background(), 2020, func(domain.DailyRecord) {})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCountries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "country_list.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"FR":"France","GM":"Germany"}`), 0o600))

	got, err := LoadCountries(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FR": "France", "GM": "Germany"}, got)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err = LoadCountries(path)
	require.Error(t, err)

	_, err = LoadCountries(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
