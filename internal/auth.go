package internal

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/frjonsen/orca/pkg/errors"
	"github.com/frjonsen/orca/pkg/types"
)

const defaultTokenEndpointPath = "api/v1/access_token"

// Requester executes a prepared HTTP request and returns the decoded
// key/value response. The caller-owned Connection satisfies it.
type Requester interface {
	RunRequest(req *http.Request) (types.ParsedResponse, error)
}

// TokenExchanger builds and submits the form-encoded grant exchanges
// against the token endpoint. One instance serves all three grant types.
type TokenExchanger struct {
	tokenURL  *url.URL
	userAgent string
}

// NewTokenExchanger resolves the token endpoint under baseURL. The endpoint
// must use an encrypted transport; plaintext is rejected up front unless the
// host is loopback, which only ever occurs against a local test server.
func NewTokenExchanger(baseURL, userAgent string) (*TokenExchanger, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to parse base URL: " + err.Error()}
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	if parsed.Scheme != "https" && !isLoopbackHost(parsed.Hostname()) {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "token endpoint must use https"}
	}

	tokenURL, err := parsed.Parse(defaultTokenEndpointPath)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to resolve token endpoint: " + err.Error()}
	}

	return &TokenExchanger{
		tokenURL:  tokenURL,
		userAgent: userAgent,
	}, nil
}

func isLoopbackHost(host string) bool {
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

// TokenURL returns the resolved token endpoint.
func (e *TokenExchanger) TokenURL() string {
	return e.tokenURL.String()
}

// PasswordGrant performs the script-app exchange: the owned account's
// credentials go in the form body, the app's id and secret in Basic auth.
func (e *TokenExchanger) PasswordGrant(ctx context.Context, conn Requester, id, secret, username, password string) (types.ParsedResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	return e.exchange(ctx, conn, "password grant", id, secret, form)
}

// CodeGrant exchanges the authorization code captured by the callback
// listener. Installed apps are public clients, so Basic auth carries the id
// with an empty secret.
func (e *TokenExchanger) CodeGrant(ctx context.Context, conn Requester, id, code, redirectURI string) (types.ParsedResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return e.exchange(ctx, conn, "code grant", id, "", form)
}

// RefreshGrant exchanges a refresh token for a fresh access token.
func (e *TokenExchanger) RefreshGrant(ctx context.Context, conn Requester, id, refreshToken string) (types.ParsedResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return e.exchange(ctx, conn, "refresh grant", id, "", form)
}

func (e *TokenExchanger) exchange(ctx context.Context, conn Requester, operation, id, secret string, form url.Values) (types.ParsedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: operation, Err: err}
	}

	req.SetBasicAuth(id, secret)
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := conn.RunRequest(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: operation, Err: err}
	}

	return resp, nil
}
