package mcpserver

import "context"

// OAuthVerifier validates a bearer token issued by an external OAuth 2.1
// authorization server and resolves it to the caller identity the rest of
// the control surface expects. It exists as a seam: the HTTP context func
// in Start() currently checks API keys through AuthStore.ValidateAPIKey,
// but a deployment that fronts this server with a real authorization
// server can swap in a OAuthVerifier implementation without touching tool
// handlers, which only ever see an AuthResult.
type OAuthVerifier interface {
	// Verify validates token and returns the resolved caller identity.
	Verify(ctx context.Context, token string) (AuthResult, error)
}

// NoopOAuthVerifier rejects every token, so wiring it where no real
// verifier exists fails closed instead of silently accepting unverified
// bearer tokens. Nothing in this package wires a verifier.
type NoopOAuthVerifier struct{}

func (NoopOAuthVerifier) Verify(ctx context.Context, token string) (AuthResult, error) {
	return AuthResult{Authenticated: false}, errOAuthNotConfigured
}

var errOAuthNotConfigured = oauthNotConfiguredError{}

type oauthNotConfiguredError struct{}

func (oauthNotConfiguredError) Error() string {
	return "oauth verification requested but no verifier is configured"
}
