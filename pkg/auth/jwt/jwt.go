// Package jwt provides a JWT authenticator that validates bearer tokens
// against a static key: an HMAC shared secret or a PEM-encoded RSA public key.
//
// Issuer and audience are checked when configured. Subject, tenant and
// service tier are read from configurable claims.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/agentserver/pkg/auth"
	"github.com/rhuss/agentserver/pkg/config"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC shared secret. Mutually exclusive with PublicKeyPEM.
	Secret []byte

	// PublicKeyPEM is a PEM-encoded RSA public key.
	PublicKeyPEM []byte

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// UserClaim is the JWT claim used as the identity subject. Default: "sub".
	UserClaim string

	// TenantClaim is the JWT claim used as the caller's tenant. Default: "tenant_id".
	TenantClaim string

	// TierClaim is the JWT claim used as the service tier. Default: "service_tier".
	TierClaim string
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "service_tier"
	}
}

// FromConfig builds a Config from the auth.jwt configuration section,
// reading the public key file when one is set.
func FromConfig(cfg config.JWTConfig) (Config, error) {
	out := Config{
		Issuer:      cfg.Issuer,
		Audience:    cfg.Audience,
		TenantClaim: cfg.TenantClaim,
		TierClaim:   cfg.TierClaim,
	}
	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return Config{}, fmt.Errorf("reading public key: %w", err)
		}
		out.PublicKeyPEM = pem
	} else {
		out.Secret = []byte(cfg.Secret)
	}
	return out, nil
}

// Authenticator validates JWT bearer tokens against a static key.
type Authenticator struct {
	config  Config
	key     any
	methods []string
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()

	a := &Authenticator{config: cfg}
	switch {
	case len(cfg.PublicKeyPEM) > 0 && len(cfg.Secret) > 0:
		return nil, errors.New("jwt: secret and public key are mutually exclusive")
	case len(cfg.PublicKeyPEM) > 0:
		key, err := jwtlib.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		a.key = key
		a.methods = []string{"RS256", "RS384", "RS512"}
	case len(cfg.Secret) > 0:
		a.key = cfg.Secret
		a.methods = []string{"HS256", "HS384", "HS512"}
	default:
		return nil, errors.New("jwt: a secret or public key is required")
	}
	return a, nil
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it as a JWT, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      errors.New("empty bearer token"),
		}
	}

	token, err := jwtlib.Parse(tokenStr, func(*jwtlib.Token) (any, error) {
		return a.key, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT: %w", err),
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      errors.New("invalid JWT claims"),
		}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: claimString(claims, a.config.TierClaim),
			Tenant:      claimString(claims, a.config.TenantClaim),
		},
	}
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(a.methods),
		jwtlib.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
