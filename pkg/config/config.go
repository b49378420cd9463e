// Package config provides unified configuration for the agent server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (AGENTSERVER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the agent server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Agent         AgentConfig         `yaml:"agent"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams are unbounded)
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// AgentConfig selects the request contract and names the agent.
type AgentConfig struct {
	Type string `yaml:"type"` // default: "agent/v1/responses"
	Name string `yaml:"name"` // default: "agent", prefix of span names
}

// TracingConfig holds span recording and export settings.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`       // default: true
	ServiceName  string `yaml:"service_name"`  // default: "agentserver"
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty disables export
	Insecure     bool   `yaml:"insecure"`
	MaxTraces    int    `yaml:"max_traces"` // default: 1000
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig describes how bearer tokens are verified. Exactly one of the
// HMAC secret or the RSA public key must be set.
type JWTConfig struct {
	Secret        string `yaml:"secret"`
	SecretFile    string `yaml:"secret_file"`     // _file variant for secret
	PublicKeyFile string `yaml:"public_key_file"` // PEM-encoded RSA public key
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	TenantClaim   string `yaml:"tenant_claim"` // default: "tenant_id"
	TierClaim     string `yaml:"tier_claim"`   // default: "service_tier"
}

// RateLimitConfig holds per-subject request limits. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"` // per service tier overrides
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Sentry  SentryConfig  `yaml:"sentry"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// SentryConfig holds error reporting settings. Reporting is off without a DSN.
type SentryConfig struct {
	DSN          string        `yaml:"dsn"`
	DSNFile      string        `yaml:"dsn_file"` // _file variant for dsn
	Environment  string        `yaml:"environment"`
	Release      string        `yaml:"release"`
	SampleRate   float64       `yaml:"sample_rate"`   // default: 1.0
	FlushTimeout time.Duration `yaml:"flush_timeout"` // default: 2s
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Agent: AgentConfig{
			Type: "agent/v1/responses",
			Name: "agent",
		},
		Tracing: TracingConfig{
			Enabled:     true,
			ServiceName: "agentserver",
			MaxTraces:   1000,
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				TenantClaim: "tenant_id",
				TierClaim:   "service_tier",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Sentry: SentryConfig{
				SampleRate:   1.0,
				FlushTimeout: 2 * time.Second,
			},
		},
	}
}
