package client

import (
	"fmt"
	"net/http"
)

// Authenticator attaches credentials to an outgoing request. The transport
// calls it once for every request, downloads included.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

type AuthenticatorFunc func(r *http.Request) error

func (f AuthenticatorFunc) Authenticate(r *http.Request) error {
	return f(r)
}

func BasicCredentials(username, password string) Authenticator {
	return AuthenticatorFunc(func(r *http.Request) error {
		if username == "" {
			return fmt.Errorf("basic credentials require a username")
		}
		r.SetBasicAuth(username, password)
		return nil
	})
}

// TokenCredentials sends a personal access token as a bearer token.
func TokenCredentials(token string) Authenticator {
	return AuthenticatorFunc(func(r *http.Request) error {
		if token == "" {
			return fmt.Errorf("token credentials require a token")
		}
		r.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

func AnonymousCredentials() Authenticator {
	return AuthenticatorFunc(func(*http.Request) error {
		return nil
	})
}
