package orca

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frjonsen/orca/internal"
	pkgerrs "github.com/frjonsen/orca/pkg/errors"
	"github.com/frjonsen/orca/pkg/types"
)

const (
	// DefaultAuthURL is the base URL for the authorize and token endpoints.
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultRedirectURI is the loopback redirect registered for installed apps.
	DefaultRedirectURI = "http://127.0.0.1:7878/"
	// DefaultUserAgent is the default user agent string.
	DefaultUserAgent = "orca/0.1"
	// DefaultTimeout bounds the wait for the browser-side consent.
	DefaultTimeout = 10 * time.Minute
	// DefaultHTTPTimeout is the default HTTP client timeout.
	DefaultHTTPTimeout = 30 * time.Second
)

// DefaultScopes is the permission set requested during installed-app
// authorization when Config.Scopes is not set.
var DefaultScopes = []string{
	"identity", "edit", "flair", "history", "modconfig", "modflair",
	"modlog", "modposts", "modwiki", "mysubreddits", "privatemessages",
	"read", "report", "save", "submit", "subscribe", "vote",
	"wikiedit", "wikiread", "account",
}

// AppType is the OAuth trust model a credential set or session belongs to.
type AppType int

const (
	// AppTypeScript is the confidential client type: the app keeps a secret
	// and authorizes as the one account that registered it.
	AppTypeScript AppType = iota

	// AppTypeInstalled is the public client type: no stored secret, the user
	// authorizes interactively through a browser redirect.
	AppTypeInstalled
)

// String returns the string representation of the app type.
func (t AppType) String() string {
	switch t {
	case AppTypeScript:
		return "script"
	case AppTypeInstalled:
		return "installed"
	default:
		return "unknown"
	}
}

// Credentials identifies one of the two supported app trust models.
// ScriptApp and InstalledApp are the only implementations; the set is
// closed so Authorize can match exhaustively.
type Credentials interface {
	appType() AppType
	validate() error
}

// ScriptApp holds the credentials of a confidential script app together
// with the account that registered it. Consumed once by Authorize.
type ScriptApp struct {
	// ID is the app id shown on the app preferences page.
	ID string
	// Secret is the app secret. Scripts may store it; they run on machines
	// the owner controls.
	Secret string
	// Username and Password belong to the account that registered the app.
	Username string
	Password string
}

func (ScriptApp) appType() AppType { return AppTypeScript }

func (a ScriptApp) validate() error {
	switch {
	case a.ID == "":
		return &pkgerrs.ConfigError{Field: "ID", Message: "script app id is required"}
	case a.Secret == "":
		return &pkgerrs.ConfigError{Field: "Secret", Message: "script app secret is required"}
	case a.Username == "":
		return &pkgerrs.ConfigError{Field: "Username", Message: "script username is required"}
	case a.Password == "":
		return &pkgerrs.ConfigError{Field: "Password", Message: "script password is required"}
	}
	return nil
}

// InstalledApp holds the configuration of a public installed app.
type InstalledApp struct {
	// ID is the app id shown on the app preferences page.
	ID string

	// RedirectURI must exactly match the redirect registered with the
	// remote service, scheme, host, and port included. Defaults to
	// DefaultRedirectURI. Only loopback redirects are accepted.
	RedirectURI string

	// SuccessPage and ErrorPage are optional pre-rendered HTML bodies shown
	// to the user's browser after the redirect. The defaults are plain
	// one-line confirmations.
	SuccessPage []byte
	ErrorPage   []byte
}

func (InstalledApp) appType() AppType { return AppTypeInstalled }

func (a InstalledApp) validate() error {
	if a.ID == "" {
		return &pkgerrs.ConfigError{Field: "ID", Message: "installed app id is required"}
	}
	if a.RedirectURI == "" {
		return nil
	}

	parsed, err := url.Parse(a.RedirectURI)
	if err != nil {
		return &pkgerrs.ConfigError{Field: "RedirectURI", Message: "failed to parse redirect URI: " + err.Error()}
	}
	if parsed.Scheme != "http" {
		return &pkgerrs.ConfigError{Field: "RedirectURI", Message: "redirect URI must use the http scheme"}
	}
	host := parsed.Hostname()
	if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		return &pkgerrs.ConfigError{Field: "RedirectURI", Message: "redirect URI must be a loopback address"}
	}
	return nil
}

// redirect returns the redirect URI with the default applied.
func (a InstalledApp) redirect() string {
	if a.RedirectURI == "" {
		return DefaultRedirectURI
	}
	return a.RedirectURI
}

// Connection executes a prepared HTTP request and returns the decoded
// key/value response body. It is owned by the caller and shared with the
// session for the life of the process; NewConnection provides the built-in
// rate-limited implementation.
type Connection interface {
	RunRequest(req *http.Request) (types.ParsedResponse, error)
}

// ConnectionConfig configures the built-in Connection implementation.
type ConnectionConfig struct {
	// HTTPClient to use for requests. Defaults to a client with
	// DefaultHTTPTimeout if not specified.
	HTTPClient *http.Client

	// UserAgent applied to requests that do not set their own.
	UserAgent string

	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64

	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// NewConnection returns the built-in Connection implementation: a
// rate-limited HTTP client that honors the service's Retry-After and
// X-Ratelimit headers.
func NewConnection(config *ConnectionConfig) Connection {
	if config == nil {
		config = &ConnectionConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return internal.NewClient(httpClient, userAgent, &internal.RateLimitConfig{
		RequestsPerMinute: config.RequestsPerMinute,
		Burst:             config.Burst,
	}, config.Logger)
}

// Config holds the configuration for an Authorizer.
type Config struct {
	// AuthURL is the base URL for the authorize and token endpoints.
	// Defaults to DefaultAuthURL. The token endpoint must be reachable over
	// TLS; a plaintext AuthURL is rejected.
	AuthURL string

	// UserAgent identifies the application to the remote service.
	// Defaults to DefaultUserAgent.
	UserAgent string

	// Scopes requested during installed-app authorization.
	// Defaults to DefaultScopes.
	Scopes []string

	// Timeout bounds the wait for the browser-side consent. An abandoned
	// browser flow fails with a TimeoutError once it elapses.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger

	// OpenBrowser launches the consent URL. Defaults to the system
	// browser. Overridable for tests and for embedders that present the
	// URL themselves.
	OpenBrowser func(url string) error
}

// Authorizer drives the two authorization protocols end-to-end and
// produces a live Session. One Authorizer may serve any number of
// sequential authorization attempts.
type Authorizer struct {
	config       *Config
	exchanger    *internal.TokenExchanger
	authorizeURL *url.URL
}

// NewAuthorizer validates config, fills in defaults, and resolves the
// remote endpoints.
func NewAuthorizer(config *Config) (*Authorizer, error) {
	if config == nil {
		config = &Config{}
	}

	if config.AuthURL == "" {
		config.AuthURL = DefaultAuthURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.OpenBrowser == nil {
		config.OpenBrowser = internal.OpenBrowser
	}

	exchanger, err := internal.NewTokenExchanger(config.AuthURL, config.UserAgent)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(config.AuthURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to parse base URL: " + err.Error()}
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	authorizeURL, err := base.Parse("api/v1/authorize")
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to resolve authorize endpoint: " + err.Error()}
	}

	return &Authorizer{
		config:       config,
		exchanger:    exchanger,
		authorizeURL: authorizeURL,
	}, nil
}

// Authorize runs the protocol matching the credential type and returns the
// resulting session. The credentials are consumed by the call; the session
// carries everything it needs from them. For installed apps the call blocks
// until the browser-side consent completes, the configured timeout elapses,
// or ctx is cancelled.
func (a *Authorizer) Authorize(ctx context.Context, conn Connection, creds Credentials) (*Session, error) {
	if conn == nil {
		return nil, &pkgerrs.ConfigError{Field: "conn", Message: "connection is required"}
	}
	if creds == nil {
		return nil, &pkgerrs.ConfigError{Field: "creds", Message: "credentials are required"}
	}
	if err := creds.validate(); err != nil {
		return nil, err
	}

	switch c := creds.(type) {
	case ScriptApp:
		return a.authorizeScript(ctx, conn, c)
	case InstalledApp:
		return a.authorizeInstalled(ctx, conn, c)
	default:
		return nil, &pkgerrs.ConfigError{Field: "creds", Message: "unsupported app type"}
	}
}

// authorizeScript performs the synchronous password-grant exchange.
func (a *Authorizer) authorizeScript(ctx context.Context, conn Connection, creds ScriptApp) (*Session, error) {
	resp, err := a.exchanger.PasswordGrant(ctx, conn, creds.ID, creds.Secret, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}

	token, ok := resp.Get("access_token")
	if !ok || token == "" {
		return nil, &pkgerrs.MissingTokenError{Grant: "password"}
	}

	if a.config.Logger != nil {
		a.config.Logger.Debug("script authorization complete", "app_id", creds.ID)
	}

	return newScriptSession(creds, token), nil
}

// authorizeInstalled performs the browser-mediated authorization-code flow:
// bind the callback listener, launch the browser, wait for the single
// outcome, then exchange the code for tokens. The listener is torn down on
// every exit path.
func (a *Authorizer) authorizeInstalled(ctx context.Context, conn Connection, creds InstalledApp) (*Session, error) {
	state, err := internal.GenerateState()
	if err != nil {
		return nil, err
	}

	redirectURI := creds.redirect()
	addr, err := callbackAddr(redirectURI)
	if err != nil {
		return nil, err
	}

	// Bind before launching the browser so the port is held by the time
	// the user can complete consent.
	server := internal.NewCallbackServer(addr, state, creds.SuccessPage, creds.ErrorPage, a.config.Logger)
	if err := server.Start(); err != nil {
		return nil, err
	}
	defer server.Stop()

	consentURL := a.buildAuthorizeURL(creds.ID, state, redirectURI)

	if a.config.Logger != nil {
		a.config.Logger.Debug("awaiting installed-app consent",
			"app_id", creds.ID,
			"callback_addr", server.Addr(),
		)
	}

	// Browser launch failures travel on their own channel so they stay
	// distinguishable from authorization outcomes.
	browserErr := make(chan error, 1)
	go func() {
		if err := a.config.OpenBrowser(consentURL); err != nil {
			browserErr <- err
		}
	}()

	timer := time.NewTimer(a.config.Timeout)
	defer timer.Stop()

	var result internal.CallbackResult
	select {
	case result = <-server.Result():
	case err := <-browserErr:
		return nil, &pkgerrs.BrowserError{Err: err}
	case err := <-server.ServeFailure():
		return nil, &pkgerrs.RequestError{Operation: "callback listener", Err: err}
	case <-timer.C:
		return nil, &pkgerrs.TimeoutError{After: a.config.Timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch result.Reason {
	case internal.RejectRemoteError:
		return nil, &pkgerrs.RemoteError{Code: result.ErrorCode, Description: result.ErrorDescription}
	case internal.RejectMissingState:
		return nil, &pkgerrs.StateError{Missing: true}
	case internal.RejectStateMismatch:
		return nil, &pkgerrs.StateError{}
	}

	resp, err := a.exchanger.CodeGrant(ctx, conn, creds.ID, result.Code, redirectURI)
	if err != nil {
		return nil, err
	}

	grant, err := installedGrant(resp)
	if err != nil {
		return nil, err
	}

	if a.config.Logger != nil {
		a.config.Logger.Debug("installed-app authorization complete",
			"app_id", creds.ID,
			"expires_at", grant.expiresAt,
		)
	}

	return newInstalledSession(creds, redirectURI, grant, a.exchanger), nil
}

// buildAuthorizeURL composes the consent URL the browser is pointed at.
func (a *Authorizer) buildAuthorizeURL(id, state, redirectURI string) string {
	consent := *a.authorizeURL
	params := url.Values{
		"client_id":     {id},
		"response_type": {"code"},
		"state":         {state},
		"redirect_uri":  {redirectURI},
		"duration":      {"permanent"},
		"scope":         {strings.Join(a.config.Scopes, ",")},
	}
	consent.RawQuery = params.Encode()
	return consent.String()
}

// callbackAddr extracts the host:port the callback listener binds from the
// registered redirect URI.
func callbackAddr(redirectURI string) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", &pkgerrs.ConfigError{Field: "RedirectURI", Message: "failed to parse redirect URI: " + err.Error()}
	}

	port := parsed.Port()
	if port == "" {
		port = "80"
	}

	return net.JoinHostPort(parsed.Hostname(), port), nil
}
