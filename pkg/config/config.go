// Package config loads the engine configuration from the environment. There
// is no process-wide mutable state: the loaded value is passed explicitly to
// the store and the engine.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// StoreConfig locates the backing store.
type StoreConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Config is the full engine configuration.
type Config struct {
	Store StoreConfig

	// Prefix is prepended to collection names ("<prefix>_trip", ...).
	Prefix string

	// Per-collection fetch row limits; exceeding one fails the query.
	TripLimit     int
	ZoneLimit     int
	BuildingLimit int

	// Workers for the parallel join phase.
	Workers int

	// UseIndex enables the in-memory R-Tree candidate prefilter.
	UseIndex bool

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string
}

// Load reads configuration from .env (if present) and the environment.
func Load() (Config, error) {
	// A missing .env is fine, the environment alone is enough.
	_ = godotenv.Load()

	cfg := Config{
		Store: StoreConfig{
			Host:     envStr("GEOQUERY_DB_HOST", "localhost"),
			Port:     0,
			User:     envStr("GEOQUERY_DB_USER", "postgres"),
			Password: envStr("GEOQUERY_DB_PASSWORD", "postgres"),
			Database: envStr("GEOQUERY_DB_NAME", "geoquery"),
			SSLMode:  envStr("GEOQUERY_DB_SSLMODE", "disable"),
		},
		Prefix:      envStr("GEOQUERY_PREFIX", "spatialbench"),
		MetricsAddr: envStr("GEOQUERY_METRICS_ADDR", ""),
	}

	var err error
	if cfg.Store.Port, err = envInt("GEOQUERY_DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.TripLimit, err = envInt("GEOQUERY_TRIP_LIMIT", 10_000_000); err != nil {
		return Config{}, err
	}
	if cfg.ZoneLimit, err = envInt("GEOQUERY_ZONE_LIMIT", 1_000_000); err != nil {
		return Config{}, err
	}
	if cfg.BuildingLimit, err = envInt("GEOQUERY_BUILDING_LIMIT", 1_000_000); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = envInt("GEOQUERY_WORKERS", runtime.NumCPU()); err != nil {
		return Config{}, err
	}
	if cfg.UseIndex, err = envBool("GEOQUERY_USE_INDEX", true); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return b, nil
}
