package orca

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/frjonsen/orca/internal"
	pkgerrs "github.com/frjonsen/orca/pkg/errors"
	"github.com/frjonsen/orca/pkg/types"
	"golang.org/x/oauth2"
)

// Session holds the live OAuth token state produced by one successful
// authorization. It is shared by the long-lived Connection, so the token is
// replaced in place under a lock: outstanding references observe refreshed
// tokens without reconstruction. A Session always holds a non-empty token;
// there is no partially authorized state.
type Session struct {
	appType AppType

	id          string
	secret      string
	username    string
	password    string
	redirectURI string

	exchanger *internal.TokenExchanger

	mu           sync.RWMutex
	token        string
	refreshToken string
	expiresAt    time.Time
	scope        string
}

// tokenGrant is the validated outcome of a code or refresh exchange.
type tokenGrant struct {
	token        string
	refreshToken string
	expiresAt    time.Time
	scope        string
}

// installedGrant validates the authorization-code exchange response. A
// permanent grant carries all four fields; anything missing makes the
// response unusable.
func installedGrant(resp types.ParsedResponse) (tokenGrant, error) {
	var missing []string

	token, ok := resp.Get("access_token")
	if !ok || token == "" {
		missing = append(missing, "access_token")
	}
	refreshToken, ok := resp.Get("refresh_token")
	if !ok || refreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	expiresIn, ok := resp.Get("expires_in")
	if !ok {
		missing = append(missing, "expires_in")
	}
	scope, ok := resp.Get("scope")
	if !ok {
		missing = append(missing, "scope")
	}

	if len(missing) > 0 {
		return tokenGrant{}, &pkgerrs.IncompleteTokenError{Missing: missing}
	}

	seconds, err := strconv.ParseInt(expiresIn, 10, 64)
	if err != nil {
		// Unparseable is as unusable as absent.
		return tokenGrant{}, &pkgerrs.IncompleteTokenError{Missing: []string{"expires_in"}}
	}

	return tokenGrant{
		token:        token,
		refreshToken: refreshToken,
		expiresAt:    time.Now().Add(time.Duration(seconds) * time.Second),
		scope:        scope,
	}, nil
}

func newScriptSession(creds ScriptApp, token string) *Session {
	return &Session{
		appType:  AppTypeScript,
		id:       creds.ID,
		secret:   creds.Secret,
		username: creds.Username,
		password: creds.Password,
		token:    token,
	}
}

func newInstalledSession(creds InstalledApp, redirectURI string, grant tokenGrant, exchanger *internal.TokenExchanger) *Session {
	return &Session{
		appType:      AppTypeInstalled,
		id:           creds.ID,
		redirectURI:  redirectURI,
		exchanger:    exchanger,
		token:        grant.token,
		refreshToken: grant.refreshToken,
		expiresAt:    grant.expiresAt,
		scope:        grant.scope,
	}
}

// Type returns the trust model this session was authorized under.
func (s *Session) Type() AppType {
	return s.appType
}

// Token returns the current access token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// RefreshToken returns the refresh token, if the grant carried one.
// Temporary installed-app grants and script sessions have none.
func (s *Session) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken, s.refreshToken != ""
}

// ExpiresAt returns the expiry instant of the current access token. Script
// tokens are not tracked as expiring, so ok is false for script sessions.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

// Scope returns the scope string granted by the remote service, if any.
func (s *Session) Scope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// Expired reports whether the current token is within leeway of its expiry.
// Sessions without a tracked expiry never report expired; their owner finds
// out when the remote service rejects the token.
func (s *Session) Expired(leeway time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(leeway).Before(s.expiresAt)
}

// Refresh exchanges the refresh token for a new access token and expiry,
// mutating the session in place. For script sessions it is a no-op that
// always succeeds: script tokens are not tracked as expiring, and the owner
// re-authorizes if one is ever rejected. Callers who need continuous
// authorization invoke this before ExpiresAt elapses; whether to do so on a
// timer or lazily on expiry detection is the caller's policy.
func (s *Session) Refresh(ctx context.Context, conn Connection) error {
	if s.appType == AppTypeScript {
		return nil
	}

	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return &pkgerrs.ConfigError{Field: "refresh_token", Message: "session holds no refresh token (temporary grant)"}
	}

	resp, err := s.exchanger.RefreshGrant(ctx, conn, s.id, refreshToken)
	if err != nil {
		return err
	}

	token, ok := resp.Get("access_token")
	if !ok || token == "" {
		return &pkgerrs.MissingTokenError{Grant: "refresh_token"}
	}

	var expiresAt time.Time
	if v, ok := resp.Get("expires_in"); ok {
		if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
			expiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	s.mu.Lock()
	s.token = token
	// The service may rotate the refresh token; keep the old one otherwise.
	if rotated, ok := resp.Get("refresh_token"); ok && rotated != "" {
		s.refreshToken = rotated
	}
	if !expiresAt.IsZero() {
		s.expiresAt = expiresAt
	}
	if scope, ok := resp.Get("scope"); ok {
		s.scope = scope
	}
	s.mu.Unlock()

	return nil
}

// OAuth2Token returns the session's current token state as an oauth2.Token
// for interoperation with golang.org/x/oauth2 consumers. The returned value
// is a snapshot; it does not track later refreshes.
func (s *Session) OAuth2Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &oauth2.Token{
		AccessToken:  s.token,
		TokenType:    "bearer",
		RefreshToken: s.refreshToken,
		Expiry:       s.expiresAt,
	}
}
