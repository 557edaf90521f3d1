// Package config loads reportfetch settings from a YAML file and the
// environment.
//
// Values are resolved in order: built-in defaults, then the YAML file
// (with ${VAR} and ${VAR:-default} expanded), then REPORTFETCH_* variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/reportfetch/client/throttle"
	"github.com/adamwoolhether/reportfetch/validate"
)

// Mode selects how response bodies are read.
type Mode string

const (
	ModeStreaming Mode = "streaming"
	ModeClassic   Mode = "classic"
)

// Config defines configuration for reportfetch.
type Config struct {
	BaseURL       string          `yaml:"base_url" validate:"required,url"`
	Endpoint      string          `yaml:"endpoint" validate:"required"`
	Timeout       time.Duration   `yaml:"timeout" validate:"min=0"`
	Token         string          `yaml:"token"`
	UserAgent     string          `yaml:"user_agent"`
	Mode          Mode            `yaml:"mode" validate:"oneof=streaming classic"`
	ChunkSize     ByteSize        `yaml:"chunk_size" validate:"min=512"`
	MemoryLimit   ByteSize        `yaml:"memory_limit"`
	MaxConcurrent int             `yaml:"max_concurrent" validate:"min=0"`
	LogLevel      string          `yaml:"log_level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Throttle      throttle.Config `yaml:"throttle"`
	Output        Output          `yaml:"output"`
	Gateway       Gateway         `yaml:"gateway"`
}

// Output says where artifacts are written. Bucket, when set, is a
// gocloud.dev URL (file://, mem://, s3://, gs://) and takes precedence
// over Dir.
type Output struct {
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Gateway configures the HTTP front end served by "reportfetch serve".
type Gateway struct {
	Addr            string        `yaml:"addr" validate:"required"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		BaseURL:   "http://localhost:9191/apireport",
		Endpoint:  "/report-download",
		Timeout:   60 * time.Minute,
		UserAgent: "reportfetch/1.0",
		Mode:      ModeStreaming,
		ChunkSize: 64 << 10,
		LogLevel:  "info",
		Output: Output{
			Dir: ".",
		},
		Gateway: Gateway{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return nil
}

// Validate checks field constraints and the throttle pairing.
func (c *Config) Validate() error {
	if err := validate.Check(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Throttle != (throttle.Config{}) && (c.Throttle.RPS <= 0 || c.Throttle.Burst <= 0) {
		return fmt.Errorf("config: throttle rps[%d] and burst[%d] %w", c.Throttle.RPS, c.Throttle.Burst, throttle.ErrMustNotBeZero)
	}

	return nil
}

// Classic reports whether responses should be read in one piece.
func (c Config) Classic() bool {
	return c.Mode == ModeClassic
}

// Throttled reports whether outbound requests are rate limited.
func (c Config) Throttled() bool {
	return c.Throttle.RPS > 0 && c.Throttle.Burst > 0
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ByteSize is a size in bytes that reads from YAML and the environment as
// either a plain integer or a human string like "64KiB" or "2GB".
type ByteSize int64

// ParseByteSize parses s with go-humanize's byte notation.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	size, err := ParseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = size
	return nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
