// Package config loads elwinator settings from an optional YAML file and the
// ELWINATOR_* environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"elwinator/internal/blob"
	"elwinator/internal/core"
)

// Config is the root configuration structure.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Publish PublishConfig `yaml:"publish"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects the namespace store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`       // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`  // default ./elwinator.db
	PostgresDSN string `yaml:"postgres_dsn"` // postgres://...
}

// BlobConfig selects where published documents go.
type BlobConfig struct {
	Driver string       `yaml:"driver"`  // fs, s3, memory
	FSRoot string       `yaml:"fs_root"` // default ./published
	S3     S3BlobConfig `yaml:"s3"`
}

// S3BlobConfig configures the s3 blob driver. Credentials come from the AWS chain.
type S3BlobConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// PublishConfig tunes the publisher.
type PublishConfig struct {
	Prefix string `yaml:"prefix"` // default namespaces/
	Prune  bool   `yaml:"prune"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Trace  bool   `yaml:"trace"`  // write finished spans as JSON lines to stderr
}

// MetricsConfig selects a metrics recorder. Textfile, when set, receives the
// recorder's output when the command exits.
type MetricsConfig struct {
	Backend  string `yaml:"backend"` // none, expvar, prometheus
	Textfile string `yaml:"textfile"`
}

const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: string(core.StorageSQLite)},
		Blob:    BlobConfig{Driver: string(blob.DriverFilesystem)},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Backend: MetricsNone},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Unset variables leave the field alone.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ELWINATOR_STORAGE_DRIVER":   &c.Storage.Driver,
		"ELWINATOR_SQLITE_PATH":      &c.Storage.SQLitePath,
		"ELWINATOR_POSTGRES_DSN":     &c.Storage.PostgresDSN,
		"ELWINATOR_BLOB_DRIVER":      &c.Blob.Driver,
		"ELWINATOR_BLOB_FS_ROOT":     &c.Blob.FSRoot,
		"ELWINATOR_BLOB_S3_BUCKET":   &c.Blob.S3.Bucket,
		"ELWINATOR_BLOB_S3_REGION":   &c.Blob.S3.Region,
		"ELWINATOR_BLOB_S3_ENDPOINT": &c.Blob.S3.Endpoint,
		"ELWINATOR_PUBLISH_PREFIX":   &c.Publish.Prefix,
		"ELWINATOR_LOG_LEVEL":        &c.Log.Level,
		"ELWINATOR_LOG_FORMAT":       &c.Log.Format,
		"ELWINATOR_METRICS":          &c.Metrics.Backend,
		"ELWINATOR_METRICS_TEXTFILE": &c.Metrics.Textfile,
	}
	for key, field := range str {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}
	flags := map[string]*bool{
		"ELWINATOR_BLOB_S3_PATH_STYLE": &c.Blob.S3.PathStyle,
		"ELWINATOR_PUBLISH_PRUNE":      &c.Publish.Prune,
		"ELWINATOR_LOG_TRACE":          &c.Log.Trace,
	}
	var errs []error
	for key, field := range flags {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*field = b
	}
	return errors.Join(errs...)
}

// Validate rejects unknown drivers, levels and formats.
func (c Config) Validate() error {
	var errs []error
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	driver, err := blob.ParseDriver(c.Blob.Driver)
	if err != nil {
		errs = append(errs, fmt.Errorf("blob: %w", err))
	} else if driver == blob.DriverS3 && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("blob: s3 driver requires s3.bucket"))
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	switch strings.ToLower(c.Metrics.Backend) {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("metrics: unknown backend %q", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}

// StorageOptions converts the storage section for core.OpenPersistentStore.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() (blob.Options, error) {
	driver, err := blob.ParseDriver(c.Blob.Driver)
	if err != nil {
		return blob.Options{}, err
	}
	return blob.Options{
		Driver: driver,
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}, nil
}
