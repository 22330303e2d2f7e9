package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Geocoder providers accepted by GEOCODER_PROVIDER.
const (
	GeocoderNone   = ""
	GeocoderMapbox = "mapbox"
	GeocoderGoogle = "google"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration

	// Climate pipeline.
	ClimateRawDir      string
	ClimateOutDir      string
	ClimateCountryList string
	ClimateBeginYear   int
	ClimateEndYear     int
	ClusterCountry     string
	ClusterKMin        int
	ClusterKMax        int

	// Real estate pipeline and estimation model.
	RealEstateRawDir    string
	RealEstateOutDir    string
	RealEstateBeginYear int
	RealEstateEndYear   int
	ModelPath           string

	// Storage.
	DBDriver string
	DBDSN    string

	// Kafka sink for monthly climate facts.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaClimateTopic string

	// Station geocoding configuration.
	GeocoderProvider  string
	MapboxToken       string
	GoogleAPIKey      string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runInterval, err := parseDuration("RUN_INTERVAL", "0s", true)
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s", false)
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED")
	if err != nil {
		return nil, err
	}
	geocoderCacheSize, err := parseInt("GEOCODER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunInterval:     runInterval,

		ClimateRawDir:      sharedcfg.EnvOrDefault("CLIMATE_RAW_DIR", "data/climat/daily_raw"),
		ClimateOutDir:      sharedcfg.EnvOrDefault("CLIMATE_OUT_DIR", "data/climat/clean_for_bi"),
		ClimateCountryList: sharedcfg.EnvOrDefault("CLIMATE_COUNTRY_LIST", "data/climat/country_list.json"),
		ClusterCountry:     sharedcfg.EnvOrDefault("CLUSTER_COUNTRY", "France"),

		RealEstateRawDir: sharedcfg.EnvOrDefault("REALESTATE_RAW_DIR", "data/immobilier/transactions_raw"),
		RealEstateOutDir: sharedcfg.EnvOrDefault("REALESTATE_OUT_DIR", "data/immobilier/data_clean"),
		ModelPath:        sharedcfg.EnvOrDefault("MODEL_PATH", "ml_models/tree1.json"),

		DBDriver: sharedcfg.EnvOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:    sharedcfg.EnvOrDefault("DB_DSN", "immo.db"),

		KafkaEnabled:      kafkaEnabled,
		KafkaClimateTopic: sharedcfg.EnvOrDefault("KAFKA_CLIMATE_TOPIC", "climate-monthly"),

		GeocoderProvider:  os.Getenv("GEOCODER_PROVIDER"),
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: geocoderCacheSize,
	}

	intSettings := []struct {
		key string
		def int
		dst *int
	}{
		{"CLIMATE_BEGIN_YEAR", 2000, &cfg.ClimateBeginYear},
		{"CLIMATE_END_YEAR", 2020, &cfg.ClimateEndYear},
		{"CLUSTER_K_MIN", 2, &cfg.ClusterKMin},
		{"CLUSTER_K_MAX", 10, &cfg.ClusterKMax},
		{"REALESTATE_BEGIN_YEAR", 2014, &cfg.RealEstateBeginYear},
		{"REALESTATE_END_YEAR", 2020, &cfg.RealEstateEndYear},
	}
	for _, s := range intSettings {
		n, err := parseInt(s.key, s.def)
		if err != nil {
			return nil, err
		}
		*s.dst = n
	}

	if cfg.KafkaEnabled {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092"))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClimateBeginYear > c.ClimateEndYear {
		return errors.New("CLIMATE_BEGIN_YEAR must not be after CLIMATE_END_YEAR")
	}
	if c.RealEstateBeginYear > c.RealEstateEndYear {
		return errors.New("REALESTATE_BEGIN_YEAR must not be after REALESTATE_END_YEAR")
	}
	if c.ClusterKMin < 2 {
		return errors.New("CLUSTER_K_MIN must be at least 2")
	}
	if c.ClusterKMax < c.ClusterKMin {
		return errors.New("CLUSTER_K_MAX must not be below CLUSTER_K_MIN")
	}
	if c.GeocoderCacheSize <= 0 {
		return errors.New("GEOCODER_CACHE_SIZE must be positive")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaClimateTopic == "" {
			return errors.New("KAFKA_CLIMATE_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	switch c.GeocoderProvider {
	case GeocoderNone:
	case GeocoderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	case GeocoderGoogle:
		if c.GoogleAPIKey == "" {
			return errors.New("GEOCODER_PROVIDER is google but GOOGLE_API_KEY is not set")
		}
	default:
		return fmt.Errorf("GEOCODER_PROVIDER %q is not supported", c.GeocoderProvider)
	}
	return nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (!allowZero && d == 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
