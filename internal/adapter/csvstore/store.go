// Package csvstore reads and writes the pipeline's CSV tables: the climate
// fact and station dimension, cluster labels and k-scores, cleaned sales and
// département price tables.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// File names, relative to the store directory.
const (
	FactFile            = "ClimatFACT.csv"
	StationFile         = "StationDIM.csv"
	ClustersFile        = "Clusters.csv"
	ScoresFile          = "k_scores.csv"
	OptimalClustersFile = "Clusters_opt.csv"
	OptimalScoresFile   = "k_scores_opt.csv"
	ApartmentsFile      = "appartements.csv"
	HousesFile          = "maisons.csv"
	ApartmentPricesFile = "m2_appartement_price_per_departement.csv"
	HousePricesFile     = "m2_maison_price_per_departement.csv"
)

const sinkName = "csv"

// Store reads and writes tables under one directory.
type Store struct {
	dir     string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{dir: dir, metrics: metrics, logger: logger}
}

// Path returns the absolute location of a table file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadClusters writes the labels and k-scores of a preset.
func (s *Store) LoadClusters(_ context.Context, preset cluster.Preset, res cluster.Result) error {
	labels, scores := ClustersFile, ScoresFile
	if preset == cluster.PresetOptimal {
		labels, scores = OptimalClustersFile, OptimalScoresFile
	}
	if err := s.writeRecords(labels, res.Table.Header(), res.Table.Records()); err != nil {
		return err
	}
	return s.writeRecords(scores, res.Scores.Header(), res.Scores.Records())
}

// writeRecords writes a text table through a gota DataFrame. Every column is
// kept as a string so cell formatting is decided by the caller.
func (s *Store) writeRecords(name string, header []string, records [][]string) error {
	if len(records) == 0 {
		return s.writeFile(name, func(w io.Writer) error {
			cw := csv.NewWriter(w)
			if err := cw.Write(header); err != nil {
				return err
			}
			cw.Flush()
			return cw.Error()
		})
	}
	df := dataframe.LoadRecords(append([][]string{header}, records...),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	return s.writeFrame(name, df, len(records))
}

func (s *Store) writeFrame(name string, df dataframe.DataFrame, rows int) error {
	if df.Err != nil {
		return fmt.Errorf("build %s: %w", name, df.Err)
	}
	if err := s.writeFile(name, func(w io.Writer) error { return df.WriteCSV(w) }); err != nil {
		return err
	}
	s.metrics.SinkRows.WithLabelValues(sinkName, name).Add(float64(rows))
	s.logger.Info("csv table written", "file", s.Path(name), "rows", rows)
	return nil
}

// writeFile writes through a temporary file renamed into place.
func (s *Store) writeFile(name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	path := s.Path(name)
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// readFrame loads a table with every column as text.
func (s *Store) readFrame(name string, required ...string) (dataframe.DataFrame, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read %s: %w", name, df.Err)
	}
	names := df.Names()
	for _, c := range required {
		if !slices.Contains(names, c) {
			return df, fmt.Errorf("read %s: missing column %s", name, c)
		}
	}
	return df, nil
}
