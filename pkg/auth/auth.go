package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the vote an Authenticator casts for a request.
type AuthDecision int

const (
	// Yes accepts the request with the returned identity.
	Yes AuthDecision = iota

	// No rejects the request: credentials were presented and are invalid.
	No

	// Abstain passes the request on to the next authenticator.
	Abstain
)

// AuthResult is the outcome of one authentication attempt. Identity is set
// for Yes, Err for No.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity
	Err      error
}

// Identity is the caller behind an invocation.
type Identity struct {
	// Subject identifies the caller. Never empty for an admitted request.
	Subject string

	// ServiceTier selects the caller's rate limit.
	ServiceTier string

	// Tenant is the organization the caller acts for, if known.
	Tenant string
}

// Tag keys under which an identity is attached to spans and error reports.
const (
	TagSubject = "caller.subject"
	TagTier    = "caller.tier"
	TagTenant  = "caller.tenant"
)

// Tags returns the non-empty identity fields keyed by TagSubject, TagTier
// and TagTenant. A nil identity has no tags.
func (id *Identity) Tags() map[string]string {
	if id == nil {
		return nil
	}
	tags := make(map[string]string, 3)
	for k, v := range map[string]string{
		TagSubject: id.Subject,
		TagTier:    id.ServiceTier,
		TagTenant:  id.Tenant,
	} {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}

// Authenticator inspects the credentials of an inbound request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// anonymous is admitted when every authenticator abstains and the chain
// defaults to Yes.
var anonymous = Identity{Subject: "anonymous", ServiceTier: "default"}

// AuthChain asks its authenticators in order. The first Yes or No wins.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains.
	DefaultDecision AuthDecision
}

// Authenticate returns the first non-abstaining vote, or the default.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.DefaultDecision == Yes {
		id := anonymous
		return AuthResult{Decision: Yes, Identity: &id}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
