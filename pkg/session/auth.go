package session

import (
	"context"
	"errors"
)

// ErrAuthFailed is returned for bad or expired tokens
var ErrAuthFailed = errors.New("authentication failed")

// Authenticator validates a client token and resolves the user it belongs
// to. The production implementation calls the external auth service; tests
// and development use StaticAuthenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// StaticAuthenticator resolves tokens from a fixed map
type StaticAuthenticator struct {
	Tokens map[string]string // token → user id
}

// Authenticate implements Authenticator
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if userID, ok := a.Tokens[token]; ok {
		return userID, nil
	}
	return "", ErrAuthFailed
}
