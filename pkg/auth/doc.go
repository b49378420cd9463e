// Package auth provides optional caller authentication for the agent server.
//
// Authenticators vote Yes (identity found), No (credentials invalid) or
// Abstain (credentials not theirs). An AuthChain asks them in order and falls
// back to a default decision when all abstain.
//
// Middleware wraps /invocations, so handlers never see credentials. The
// admitted Identity travels in the request context; the dispatcher attaches
// its Tags to spans and error reports.
package auth
