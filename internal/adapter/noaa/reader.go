// Package noaa reads NOAA GSOD yearly archives. An archive is a gzip stream
// holding either a tar of per-station CSV files or the CSV files concatenated.
package noaa

import (
	"archive/tar"
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// ctxCheckEvery is how many rows are read between cancellation checks.
const ctxCheckEvery = 1 << 14

// Stats counts what happened to the rows of one archive.
type Stats struct {
	Rows     int
	Kept     int
	Rejected map[string]int
}

func (s *Stats) reject(reason string) {
	if s.Rejected == nil {
		s.Rejected = make(map[string]int)
	}
	s.Rejected[reason]++
}

// Reader opens yearly archives named {year}.tar.gz under a directory.
type Reader struct {
	dir       string
	countries map[string]string
	logger    *slog.Logger
}

// NewReader creates a reader. countries maps FIPS codes to country names.
func NewReader(dir string, countries map[string]string, logger *slog.Logger) *Reader {
	return &Reader{dir: dir, countries: countries, logger: logger}
}

// YearPath returns the archive path for a year.
func (r *Reader) YearPath(year int) string {
	return filepath.Join(r.dir, fmt.Sprintf("%d.tar.gz", year))
}

// ReadYear streams every usable daily record of a year to fn.
func (r *Reader) ReadYear(ctx context.Context, year int, fn func(domain.DailyRecord)) (Stats, error) {
	f, err := os.Open(r.YearPath(year))
	if err != nil {
		return Stats{}, fmt.Errorf("open gsod %d: %w", year, err)
	}
	defer f.Close()

	stats, err := r.Read(ctx, f, fn)
	if err != nil {
		return stats, fmt.Errorf("read gsod %d: %w", year, err)
	}
	r.logger.Info("gsod archive read",
		"year", year,
		"rows", stats.Rows,
		"kept", stats.Kept,
		"rejected", stats.Rejected,
	)
	return stats, nil
}

// Read decompresses src and streams its daily records to fn.
func (r *Reader) Read(ctx context.Context, src io.Reader, fn func(domain.DailyRecord)) (Stats, error) {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return Stats{}, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	br := bufio.NewReaderSize(gz, 64<<10)
	s := &stream{countries: r.countries, fn: fn}

	if isTar(br) {
		tr := tar.NewReader(br)
		for {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return s.stats, fmt.Errorf("read tar entry: %w", err)
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			// Each station file starts with its own header.
			s.parser = nil
			if err := s.readCSV(ctx, tr); err != nil {
				return s.stats, fmt.Errorf("read %s: %w", hdr.Name, err)
			}
		}
		return s.stats, nil
	}

	if err := s.readCSV(ctx, br); err != nil {
		return s.stats, err
	}
	return s.stats, nil
}

func isTar(br *bufio.Reader) bool {
	magic, err := br.Peek(262)
	if err != nil {
		return false
	}
	return string(magic[257:262]) == "ustar"
}

type stream struct {
	countries map[string]string
	fn        func(domain.DailyRecord)
	header    []string
	last      *domain.DailyParser
	parser    *domain.DailyParser
	stats     Stats
}

func (s *stream) readCSV(ctx context.Context, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		if s.parser == nil {
			if err := s.useHeader(row); err != nil {
				return err
			}
			continue
		}

		s.stats.Rows++
		if s.stats.Rows%ctxCheckEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		rec, err := s.parser.Parse(row)
		if err != nil {
			s.stats.reject(rejectReason(err))
			continue
		}
		s.stats.Kept++
		s.fn(rec)
	}
}

// useHeader reuses the last parser when the header is unchanged.
func (s *stream) useHeader(row []string) error {
	if s.last != nil && slices.Equal(s.header, row) {
		s.parser = s.last
		return nil
	}
	header := slices.Clone(row)
	p, err := domain.NewDailyParser(header, s.countries)
	if err != nil {
		return err
	}
	s.header, s.parser, s.last = header, p, p
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrHeaderRow):
		return "header"
	case errors.Is(err, domain.ErrIncompleteRow):
		return "incomplete"
	case errors.Is(err, domain.ErrUnknownCountry):
		return "country"
	case errors.Is(err, domain.ErrOutsideArea):
		return "area"
	default:
		return "malformed"
	}
}

// LoadCountries reads the FIPS code to country name mapping.
func LoadCountries(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read country list: %w", err)
	}
	var countries map[string]string
	if err := json.Unmarshal(data, &countries); err != nil {
		return nil, fmt.Errorf("decode country list: %w", err)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("country list %s is empty", path)
	}
	return countries, nil
}
