package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-processes/core"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type ClientCredentialsExchangerConfig struct {
	Authority  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// ClientCredentialsExchanger exchanges an identity's client id and secret for
// a bearer token at <authority>/<tenant>/oauth2/v2.0/token.
type ClientCredentialsExchanger struct {
	authority  string
	httpClient *http.Client
	now        func() time.Time
}

func NewClientCredentialsExchanger(cfg ClientCredentialsExchangerConfig) *ClientCredentialsExchanger {
	authority := strings.TrimRight(strings.TrimSpace(cfg.Authority), "/")
	if authority == "" {
		authority = core.DefaultAuthority
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ClientCredentialsExchanger{authority: authority, httpClient: httpClient, now: now}
}

func (e *ClientCredentialsExchanger) TokenURL(identity core.ServiceIdentity) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", e.authority, strings.TrimSpace(identity.TenantID))
}

func (e *ClientCredentialsExchanger) Exchange(ctx context.Context, identity core.ServiceIdentity) (Token, error) {
	if err := identity.Validate(); err != nil {
		return Token{}, core.AuthenticationFailed(err, identity.ID)
	}
	tokenURL := e.TokenURL(identity)
	conf := clientcredentials.Config{
		ClientID:     identity.ClientID,
		ClientSecret: identity.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{identity.ResourceScope()},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	issued, err := conf.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return Token{}, core.AuthenticationFailed(
				core.RemoteCallFailed(retrieveErr.Response.StatusCode, tokenURL, retrieveErr.Body),
				identity.ID,
			)
		}
		return Token{}, core.AuthenticationFailed(err, identity.ID)
	}

	expiresAt := issued.Expiry.UTC()
	if expiresAt.IsZero() && issued.ExpiresIn > 0 {
		expiresAt = e.now().Add(time.Duration(issued.ExpiresIn) * time.Second)
	}
	return Token{Value: issued.AccessToken, ExpiresAt: expiresAt}, nil
}
