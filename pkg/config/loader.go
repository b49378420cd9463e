package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AGENTSERVER_CONFIG env, ./config.yaml, /etc/agentserver/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. AGENTSERVER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/agentserver/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("AGENTSERVER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/agentserver/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps AGENTSERVER_* environment variables to config
// fields. Malformed numeric, boolean, or JSON values are reported rather
// than ignored.
func applyEnvOverrides(cfg *Config) error {
	e := envReader{}

	e.setInt("AGENTSERVER_PORT", &cfg.Server.Port)
	e.setInt64("AGENTSERVER_MAX_BODY_SIZE", &cfg.Server.MaxBodySize)
	e.setDuration("AGENTSERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.setString("AGENTSERVER_AGENT_TYPE", &cfg.Agent.Type)
	e.setString("AGENTSERVER_AGENT_NAME", &cfg.Agent.Name)

	e.setBool("AGENTSERVER_TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.setString("AGENTSERVER_SERVICE_NAME", &cfg.Tracing.ServiceName)
	e.setString("AGENTSERVER_OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)
	e.setBool("AGENTSERVER_OTLP_INSECURE", &cfg.Tracing.Insecure)
	e.setInt("AGENTSERVER_MAX_TRACES", &cfg.Tracing.MaxTraces)

	e.setString("AGENTSERVER_AUTH_TYPE", &cfg.Auth.Type)
	e.setString("AGENTSERVER_JWT_SECRET", &cfg.Auth.JWT.Secret)
	e.setString("AGENTSERVER_JWT_PUBLIC_KEY_FILE", &cfg.Auth.JWT.PublicKeyFile)
	e.setString("AGENTSERVER_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	e.setString("AGENTSERVER_JWT_AUDIENCE", &cfg.Auth.JWT.Audience)
	e.setInt("AGENTSERVER_RATE_LIMIT_RPM", &cfg.Auth.RateLimit.RequestsPerMinute)

	// AGENTSERVER_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("AGENTSERVER_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("AGENTSERVER_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	e.setString("AGENTSERVER_LOG_FORMAT", &cfg.Logging.Format)

	e.setBool("AGENTSERVER_METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)
	e.setString("AGENTSERVER_SENTRY_DSN", &cfg.Observability.Sentry.DSN)
	e.setString("AGENTSERVER_SENTRY_ENVIRONMENT", &cfg.Observability.Sentry.Environment)

	return e.err()
}

// envReader applies typed environment values and collects parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	// observability.sentry.dsn_file -> observability.sentry.dsn
	if cfg.Observability.Sentry.DSNFile != "" && cfg.Observability.Sentry.DSN == "" {
		val, err := readSecretFile(cfg.Observability.Sentry.DSNFile)
		if err != nil {
			return fmt.Errorf("observability.sentry.dsn_file: %w", err)
		}
		cfg.Observability.Sentry.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
