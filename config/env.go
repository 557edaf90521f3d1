package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "REPORTFETCH_"

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} in input. Unset variables
// without a default expand to the empty string. A bare $ is left alone so
// secrets containing one survive.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)

		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

// LoadFromEnv overlays REPORTFETCH_* environment variables onto c.
func (c *Config) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	str("BASE_URL", &c.BaseURL)
	str("ENDPOINT", &c.Endpoint)
	str("TOKEN", &c.Token)
	str("USER_AGENT", &c.UserAgent)
	str("LOG_LEVEL", &c.LogLevel)
	str("OUTPUT_DIR", &c.Output.Dir)
	str("OUTPUT_BUCKET", &c.Output.Bucket)
	str("OUTPUT_PREFIX", &c.Output.Prefix)
	str("GATEWAY_ADDR", &c.Gateway.Addr)

	if v := os.Getenv(envPrefix + "MODE"); v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v := os.Getenv(envPrefix + "GATEWAY_CORS_ORIGINS"); v != "" {
		c.Gateway.CORSOrigins = strings.Split(v, ",")
	}

	ints := map[string]*int{
		"MAX_CONCURRENT": &c.MaxConcurrent,
		"THROTTLE_RPS":   &c.Throttle.RPS,
		"THROTTLE_BURST": &c.Throttle.Burst,
	}
	for name, dst := range ints {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	sizes := map[string]*ByteSize{
		"CHUNK_SIZE":   &c.ChunkSize,
		"MEMORY_LIMIT": &c.MemoryLimit,
	}
	for name, dst := range sizes {
		if v := os.Getenv(envPrefix + name); v != "" {
			size, err := ParseByteSize(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
			}
			*dst = size
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":                  &c.Timeout,
		"GATEWAY_READ_TIMEOUT":     &c.Gateway.ReadTimeout,
		"GATEWAY_SHUTDOWN_TIMEOUT": &c.Gateway.ShutdownTimeout,
	}
	for name, dst := range durations {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}

	return nil
}

// parseDuration accepts Go duration strings and bare millisecond counts,
// so TIMEOUT=3600000 means an hour.
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}
