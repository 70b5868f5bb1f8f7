// Package auth provides Bright Data API authentication.
//
// Every Bright Data endpoint authenticates with a static account API
// token sent as a bearer credential. The package wraps the token in an
// oauth2.TokenSource so HTTP clients pick it up through the standard
// transport instead of hand-setting headers at every call site.
package auth

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ajitpratap0/brightsync/pkg/errors"
)

// ConfigKeyAPIToken is the configuration key connectors read the
// account token from.
const ConfigKeyAPIToken = "api_token"

// Credentials holds the Bright Data account credentials.
type Credentials struct {
	// APIToken is the account-level API token
	APIToken string
}

// FromConfiguration extracts and validates credentials from a connector
// configuration map. It fails fast so a missing token never reaches the
// network.
func FromConfiguration(config map[string]string) (*Credentials, error) {
	token := strings.TrimSpace(config[ConfigKeyAPIToken])
	if token == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "api_token is required")
	}
	return &Credentials{APIToken: token}, nil
}

// TokenSource returns an oauth2.TokenSource that emits the static
// bearer token. Bright Data tokens do not expire on a schedule, so a
// static source is sufficient.
func (c *Credentials) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.APIToken,
		TokenType:   "Bearer",
	})
}

// Transport wraps a base transport so every request carries the bearer
// token. The base transport is preserved, keeping connection pooling
// and HTTP/2 settings configured upstream in effect. A nil base falls
// back to http.DefaultTransport.
func (c *Credentials) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &oauth2.Transport{
		Source: c.TokenSource(),
		Base:   base,
	}
}

// HTTPClient builds an *http.Client that injects the bearer token into
// every request.
//
// oauth2.NewClient drops the base client's timeout, so the client is
// assembled explicitly here.
func (c *Credentials) HTTPClient(base http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: c.Transport(base),
		Timeout:   timeout,
	}
}
