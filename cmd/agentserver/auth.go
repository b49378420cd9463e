package main

import (
	"fmt"
	"net/http"

	"github.com/rhuss/agentserver/pkg/auth"
	"github.com/rhuss/agentserver/pkg/auth/apikey"
	"github.com/rhuss/agentserver/pkg/auth/jwt"
	"github.com/rhuss/agentserver/pkg/config"
)

// buildAuthMiddleware returns the HTTP auth middleware for cfg, or nil when
// authentication is disabled.
func buildAuthMiddleware(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "apikey":
		authn = apikey.New(cfg.APIKeys)
	case "jwt":
		jcfg, err := jwt.FromConfig(cfg.JWT)
		if err != nil {
			return nil, err
		}
		a, err := jwt.New(jcfg)
		if err != nil {
			return nil, err
		}
		authn = a
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{authn},
		DefaultDecision: auth.No,
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.RequestsPerMinute)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
