package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	// Input datasets. Table paths default to fixed locations under DATA_DIR.
	DataDir             string
	EventsPath          string
	FactsPath           string
	FactsDictionaryPath string
	HomicidePath        string
	SpendingPath        string
	CountyBoundaryPaths []string
	CountyIDProperty    string
	ReferencePath       string

	// Reconciliation and feature derivation.
	HomicideYear     int
	WeaponChoiceSeed *uint64
	LocatorCacheSize int

	// Sinks. Each is disabled when left empty.
	KafkaBrokers   []string
	KafkaSinkTopic string
	SQLitePath     string
	OutputPath     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	homicideYear, err := parseHomicideYear()
	if err != nil {
		return nil, err
	}

	seed, err := parseWeaponChoiceSeed()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseLocatorCacheSize()
	if err != nil {
		return nil, err
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "datasets")
	inData := func(key, name string) string {
		return sharedcfg.EnvOrDefault(key, filepath.Join(dataDir, name))
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		DataDir:             dataDir,
		EventsPath:          inData("EVENTS_PATH", "data-police-shootings/v2/fatal-police-shootings-data.csv"),
		FactsPath:           inData("FACTS_PATH", "county_facts/county_facts.csv"),
		FactsDictionaryPath: inData("FACTS_DICTIONARY_PATH", "county_facts/county_facts_dictionary.csv"),
		HomicidePath:        inData("HOMICIDE_PATH", "homocide_deaths/homocide_deaths.csv"),
		SpendingPath:        inData("SPENDING_PATH", "state_spending_data/dqs_table_87_8.xlsx"),
		CountyBoundaryPaths: splitList(sharedcfg.EnvOrDefault("COUNTY_BOUNDARY_PATHS", "geodata/county/ACS_2021_5YR_COUNTY.geojson")),
		CountyIDProperty:    sharedcfg.EnvOrDefault("COUNTY_ID_PROPERTY", "GEOID"),
		ReferencePath:       os.Getenv("REFERENCE_PATH"),

		HomicideYear:     homicideYear,
		WeaponChoiceSeed: seed,
		LocatorCacheSize: cacheSize,

		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "enriched-shooting-events"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		OutputPath:     os.Getenv("OUTPUT_PATH"),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the Kafka sink is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseHomicideYear() (int, error) {
	s := sharedcfg.EnvOrDefault("HOMICIDE_YEAR", "2021")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1900 {
		return 0, errors.New("invalid HOMICIDE_YEAR")
	}
	return n, nil
}

// parseWeaponChoiceSeed returns nil when WEAPON_CHOICE_SEED is unset, which
// selects a clock-seeded chooser.
func parseWeaponChoiceSeed() (*uint64, error) {
	s := os.Getenv("WEAPON_CHOICE_SEED")
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.New("invalid WEAPON_CHOICE_SEED: must be an unsigned integer")
	}
	return &n, nil
}

func parseLocatorCacheSize() (int, error) {
	s := sharedcfg.EnvOrDefault("LOCATOR_CACHE_SIZE", "4096")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid LOCATOR_CACHE_SIZE")
	}
	return n, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
