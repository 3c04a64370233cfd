// Package config loads the process-wide Config from environment variables
// at startup, per spec.md §6's configuration table, with an optional
// pageflow.yaml override layered over the environment (its keys win over
// environment variables).
// No config library is pulled in beyond the standard library: the teacher's
// own cmd/assistant reads flags/env directly, and no Viper/koanf-style
// loader appears anywhere in the retrieved pack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved, typed configuration for one process. Every
// field maps directly to a Key in spec.md §6's table; fields not in that
// table are ambient additions (provider credentials, listen address, log
// level) spec.md leaves to the deployer.
type Config struct {
	JavaBackendBaseURL     string
	JavaBackendAPIPrefix   string
	JavaBackendAccessToken string
	JavaBackendTimeoutSec  int

	RouterConfidenceHigh float64
	RouterConfidenceLow  float64

	RetryMaxAttempts int
	RetryBaseDelayMs int

	CircuitOpenThreshold int
	CircuitResetSec      int

	// RateLimitPerSecond is the Backend Data Client's optional outbound
	// rate limit; zero disables it (§1 DOMAIN STACK's golang.org/x/time
	// wiring, alongside retry+circuit breaker).
	RateLimitPerSecond float64
	RateLimitBurst     int

	SessionTTLSec int
	ToolTimeoutSec int

	AnthropicAPIKey string
	OpenAIAPIKey    string
	AWSRegion       string

	ListenAddr string
	LogLevel   string

	// useMockData is read and written through UseMockData/SetUseMockData so
	// it can be hot-toggled after startup (§6: "useMockData may be
	// hot-toggled"), unlike every other field here which is fixed for the
	// process lifetime. Held as a pointer so Config itself stays a plain,
	// copyable value (defaults() returns one by value).
	useMockData *atomic.Bool
}

// defaults mirrors spec.md §6's table verbatim: every numeric/threshold
// default named there, plus reasonable ambient defaults for fields the
// spec leaves to the deployer.
func defaults() Config {
	c := Config{
		JavaBackendAPIPrefix:  "/api",
		JavaBackendTimeoutSec: 15,
		RouterConfidenceHigh:  0.7,
		RouterConfidenceLow:   0.4,
		RetryMaxAttempts:      3,
		RetryBaseDelayMs:      500,
		CircuitOpenThreshold:  5,
		CircuitResetSec:       60,
		SessionTTLSec:         3600,
		ToolTimeoutSec:        15,
		ListenAddr:            ":8080",
		LogLevel:              "info",
		useMockData:           &atomic.Bool{},
	}
	return c
}

// yamlOverride is the subset of Config fields a pageflow.yaml file may set,
// using lower-camel-case keys matching spec.md §6's Key column. Any field
// omitted from the file leaves the environment/default value untouched.
type yamlOverride struct {
	JavaBackendBaseURL     *string  `yaml:"javaBackendBaseUrl"`
	JavaBackendAPIPrefix   *string  `yaml:"javaBackendApiPrefix"`
	JavaBackendAccessToken *string  `yaml:"javaBackendAccessToken"`
	JavaBackendTimeoutSec  *int     `yaml:"javaBackendTimeoutSec"`
	UseMockData            *bool    `yaml:"useMockData"`
	RouterConfidenceHigh   *float64 `yaml:"routerConfidenceHigh"`
	RouterConfidenceLow    *float64 `yaml:"routerConfidenceLow"`
	RetryMaxAttempts       *int     `yaml:"retryMaxAttempts"`
	RetryBaseDelayMs       *int     `yaml:"retryBaseDelayMs"`
	CircuitOpenThreshold   *int     `yaml:"circuitOpenThreshold"`
	CircuitResetSec        *int     `yaml:"circuitResetSec"`
	RateLimitPerSecond     *float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst         *int     `yaml:"rateLimitBurst"`
	SessionTTLSec          *int     `yaml:"sessionTtlSec"`
	ToolTimeoutSec         *int     `yaml:"toolTimeoutSec"`
	ListenAddr             *string  `yaml:"listenAddr"`
	LogLevel               *string  `yaml:"logLevel"`
}

// Load resolves Config from defaults, then environment variables, then (if
// yamlPath is non-empty and the file exists) a pageflow.yaml override —
// each layer wins over the previous one, so a key set in the YAML file
// overrides the same key set in the environment. A missing yamlPath is not
// an error; a present-but-malformed one is.
func Load(yamlPath string) (*Config, error) {
	cfg := defaults()
	applyEnv(&cfg)

	if yamlPath != "" {
		if _, err := os.Stat(yamlPath); err == nil {
			if err := applyYAMLFile(&cfg, yamlPath); err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", yamlPath, err)
		}
	}

	return &cfg, nil
}

func applyEnv(c *Config) {
	c.JavaBackendBaseURL = envString("JAVA_BACKEND_BASE_URL", c.JavaBackendBaseURL)
	c.JavaBackendAPIPrefix = envString("JAVA_BACKEND_API_PREFIX", c.JavaBackendAPIPrefix)
	c.JavaBackendAccessToken = envString("JAVA_BACKEND_ACCESS_TOKEN", c.JavaBackendAccessToken)
	c.JavaBackendTimeoutSec = envInt("JAVA_BACKEND_TIMEOUT_SEC", c.JavaBackendTimeoutSec)

	c.useMockData.Store(envBool("USE_MOCK_DATA", false))

	c.RouterConfidenceHigh = envFloat("ROUTER_CONFIDENCE_HIGH", c.RouterConfidenceHigh)
	c.RouterConfidenceLow = envFloat("ROUTER_CONFIDENCE_LOW", c.RouterConfidenceLow)

	c.RetryMaxAttempts = envInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryBaseDelayMs = envInt("RETRY_BASE_DELAY_MS", c.RetryBaseDelayMs)

	c.CircuitOpenThreshold = envInt("CIRCUIT_OPEN_THRESHOLD", c.CircuitOpenThreshold)
	c.CircuitResetSec = envInt("CIRCUIT_RESET_SEC", c.CircuitResetSec)

	c.RateLimitPerSecond = envFloat("RATE_LIMIT_PER_SECOND", c.RateLimitPerSecond)
	c.RateLimitBurst = envInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	c.SessionTTLSec = envInt("SESSION_TTL_SEC", c.SessionTTLSec)
	c.ToolTimeoutSec = envInt("TOOL_TIMEOUT_SEC", c.ToolTimeoutSec)

	c.AnthropicAPIKey = envString("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.OpenAIAPIKey = envString("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AWSRegion = envString("AWS_REGION", c.AWSRegion)

	c.ListenAddr = envString("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)
}

func applyYAMLFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ov yamlOverride
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if ov.JavaBackendBaseURL != nil {
		c.JavaBackendBaseURL = *ov.JavaBackendBaseURL
	}
	if ov.JavaBackendAPIPrefix != nil {
		c.JavaBackendAPIPrefix = *ov.JavaBackendAPIPrefix
	}
	if ov.JavaBackendAccessToken != nil {
		c.JavaBackendAccessToken = *ov.JavaBackendAccessToken
	}
	if ov.JavaBackendTimeoutSec != nil {
		c.JavaBackendTimeoutSec = *ov.JavaBackendTimeoutSec
	}
	if ov.UseMockData != nil {
		c.useMockData.Store(*ov.UseMockData)
	}
	if ov.RouterConfidenceHigh != nil {
		c.RouterConfidenceHigh = *ov.RouterConfidenceHigh
	}
	if ov.RouterConfidenceLow != nil {
		c.RouterConfidenceLow = *ov.RouterConfidenceLow
	}
	if ov.RetryMaxAttempts != nil {
		c.RetryMaxAttempts = *ov.RetryMaxAttempts
	}
	if ov.RetryBaseDelayMs != nil {
		c.RetryBaseDelayMs = *ov.RetryBaseDelayMs
	}
	if ov.CircuitOpenThreshold != nil {
		c.CircuitOpenThreshold = *ov.CircuitOpenThreshold
	}
	if ov.CircuitResetSec != nil {
		c.CircuitResetSec = *ov.CircuitResetSec
	}
	if ov.RateLimitPerSecond != nil {
		c.RateLimitPerSecond = *ov.RateLimitPerSecond
	}
	if ov.RateLimitBurst != nil {
		c.RateLimitBurst = *ov.RateLimitBurst
	}
	if ov.SessionTTLSec != nil {
		c.SessionTTLSec = *ov.SessionTTLSec
	}
	if ov.ToolTimeoutSec != nil {
		c.ToolTimeoutSec = *ov.ToolTimeoutSec
	}
	if ov.ListenAddr != nil {
		c.ListenAddr = *ov.ListenAddr
	}
	if ov.LogLevel != nil {
		c.LogLevel = *ov.LogLevel
	}
	return nil
}

// UseMockData reports the current hot-toggleable useMockData value.
func (c *Config) UseMockData() bool { return c.useMockData.Load() }

// SetUseMockData hot-toggles useMockData, per §6.
func (c *Config) SetUseMockData(v bool) { c.useMockData.Store(v) }

// JavaBackendTimeout is JavaBackendTimeoutSec as a time.Duration.
func (c *Config) JavaBackendTimeout() time.Duration {
	return time.Duration(c.JavaBackendTimeoutSec) * time.Second
}

// RetryBaseDelay is RetryBaseDelayMs as a time.Duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// CircuitResetTimeout is CircuitResetSec as a time.Duration.
func (c *Config) CircuitResetTimeout() time.Duration {
	return time.Duration(c.CircuitResetSec) * time.Second
}

// SessionTTL is SessionTTLSec as a time.Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// ToolTimeout is ToolTimeoutSec as a time.Duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSec) * time.Second
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
