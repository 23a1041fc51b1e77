// Package config loads the runtime configuration for `mera run` and the
// backup commands.
//
// Load reads YAML, applies MERA_* environment overrides, fills defaults and
// validates the result. Environment variables win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverFS     = "fs"
	DriverS3     = "s3"
)

// Config is the root configuration.
type Config struct {
	// Owner is the learner identity every bundle must carry.
	Owner string `yaml:"owner" validate:"required"`

	// Registry is the path of the curriculum registry YAML.
	Registry string `yaml:"registry" validate:"required"`

	Local   StoreConfig   `yaml:"local"`
	Remote  StoreConfig   `yaml:"remote"`
	Engine  EngineConfig  `yaml:"engine"`
	Save    SaveConfig    `yaml:"save"`
	Backups BackupConfig  `yaml:"backups"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig selects and configures one storage driver.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=memory sqlite badger redis fs s3"`

	// Path is the database file (sqlite), directory (badger, fs).
	Path string `yaml:"path"`

	// InMemory runs badger without a directory.
	InMemory bool `yaml:"inMemory"`

	Redis RedisConfig `yaml:"redis"`
	S3    S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PathStyle       bool   `yaml:"pathStyle"`
}

type EngineConfig struct {
	TickInterval    time.Duration `yaml:"tickInterval" validate:"gt=0"`
	PersistInterval time.Duration `yaml:"persistInterval" validate:"gt=0"`
}

type SaveConfig struct {
	PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
	// WriteTimeout bounds each destination write. Zero means unbounded.
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gte=0"`
}

type BackupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Retain   int           `yaml:"retain" validate:"min=1"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns a configuration with every optional field filled.
// Owner and Registry are left empty.
func Default() Config {
	return Config{
		Local:  StoreConfig{Driver: DriverSQLite, Path: "mera-cache.db"},
		Remote: StoreConfig{Driver: DriverFS, Path: "mera-remote"},
		Engine: EngineConfig{
			TickInterval:    50 * time.Millisecond,
			PersistInterval: 15 * time.Second,
		},
		Save: SaveConfig{PollInterval: 50 * time.Millisecond},
		Backups: BackupConfig{
			Enabled:  true,
			Retain:   20,
			Interval: time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStore, StoreConfig{})
	return v
}

// validateStore checks the fields each driver needs.
func validateStore(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)
	switch s.Driver {
	case DriverSQLite, DriverFS:
		if s.Path == "" {
			sl.ReportError(s.Path, "Path", "path", "required_for_driver", s.Driver)
		}
	case DriverBadger:
		if s.Path == "" && !s.InMemory {
			sl.ReportError(s.Path, "Path", "path", "required_for_driver", s.Driver)
		}
	case DriverRedis:
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "Addr", "addr", "required_for_driver", s.Driver)
		}
	case DriverS3:
		if s.S3.Bucket == "" {
			sl.ReportError(s.S3.Bucket, "Bucket", "bucket", "required_for_driver", s.Driver)
		}
	}
}

// Validate checks c against its struct tags and driver rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads path, applies environment overrides and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default, applies environment overrides and
// validates. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envOverride maps one MERA_* variable onto a field.
type envOverride struct {
	name  string
	apply func(c *Config, v string) error
}

var envOverrides = []envOverride{
	{"MERA_OWNER", func(c *Config, v string) error { c.Owner = v; return nil }},
	{"MERA_REGISTRY", func(c *Config, v string) error { c.Registry = v; return nil }},
	{"MERA_LOCAL_DRIVER", func(c *Config, v string) error { c.Local.Driver = v; return nil }},
	{"MERA_LOCAL_PATH", func(c *Config, v string) error { c.Local.Path = v; return nil }},
	{"MERA_REMOTE_DRIVER", func(c *Config, v string) error { c.Remote.Driver = v; return nil }},
	{"MERA_REMOTE_PATH", func(c *Config, v string) error { c.Remote.Path = v; return nil }},
	{"MERA_REDIS_ADDR", func(c *Config, v string) error { c.Local.Redis.Addr = v; return nil }},
	{"MERA_REDIS_PASSWORD", func(c *Config, v string) error { c.Local.Redis.Password = v; return nil }},
	{"MERA_S3_BUCKET", func(c *Config, v string) error { c.Remote.S3.Bucket = v; return nil }},
	{"MERA_S3_PREFIX", func(c *Config, v string) error { c.Remote.S3.Prefix = v; return nil }},
	{"MERA_S3_REGION", func(c *Config, v string) error { c.Remote.S3.Region = v; return nil }},
	{"MERA_S3_ENDPOINT", func(c *Config, v string) error { c.Remote.S3.Endpoint = v; return nil }},
	{"MERA_S3_ACCESS_KEY_ID", func(c *Config, v string) error { c.Remote.S3.AccessKeyID = v; return nil }},
	{"MERA_S3_SECRET_ACCESS_KEY", func(c *Config, v string) error { c.Remote.S3.SecretAccessKey = v; return nil }},
	{"MERA_TICK_INTERVAL", durationEnv(func(c *Config) *time.Duration { return &c.Engine.TickInterval })},
	{"MERA_PERSIST_INTERVAL", durationEnv(func(c *Config) *time.Duration { return &c.Engine.PersistInterval })},
	{"MERA_WRITE_TIMEOUT", durationEnv(func(c *Config) *time.Duration { return &c.Save.WriteTimeout })},
	{"MERA_BACKUPS_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Backups.Enabled = b
		return nil
	}},
	{"MERA_BACKUPS_RETAIN", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Backups.Retain = n
		return nil
	}},
	{"MERA_METRICS_ADDR", func(c *Config, v string) error { c.Metrics.Addr = v; return nil }},
	{"MERA_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"MERA_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
}

func durationEnv(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok {
			continue
		}
		if err := o.apply(c, v); err != nil {
			return fmt.Errorf("%s=%q: %w", o.name, v, err)
		}
	}
	return nil
}
