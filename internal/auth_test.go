package internal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	pkgerrs "github.com/frjonsen/orca/pkg/errors"
	"github.com/frjonsen/orca/pkg/types"
)

// stubRequester captures the request handed to it and returns a canned
// response.
type stubRequester struct {
	resp types.ParsedResponse
	err  error

	lastReq  *http.Request
	lastForm url.Values
}

func (s *stubRequester) RunRequest(req *http.Request) (types.ParsedResponse, error) {
	s.lastReq = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		s.lastForm = form
	}
	return s.resp, s.err
}

func TestNewTokenExchanger(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		baseURL      string
		wantErr      bool
		wantTokenURL string
	}{
		{
			name:         "https endpoint",
			baseURL:      "https://www.reddit.com/",
			wantTokenURL: "https://www.reddit.com/api/v1/access_token",
		},
		{
			name:         "trailing slash added",
			baseURL:      "https://www.reddit.com",
			wantTokenURL: "https://www.reddit.com/api/v1/access_token",
		},
		{
			name:         "loopback http tolerated for local servers",
			baseURL:      "http://127.0.0.1:8080/",
			wantTokenURL: "http://127.0.0.1:8080/api/v1/access_token",
		},
		{
			name:    "plaintext endpoint rejected",
			baseURL: "http://www.reddit.com/",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exchanger, err := NewTokenExchanger(tc.baseURL, "test-agent")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var cfgErr *pkgerrs.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("expected *errors.ConfigError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exchanger.TokenURL() != tc.wantTokenURL {
				t.Errorf("expected token URL %q, got %q", tc.wantTokenURL, exchanger.TokenURL())
			}
		})
	}
}

func TestGrantRequests(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		run        func(e *TokenExchanger, conn Requester) (types.ParsedResponse, error)
		wantForm   map[string]string
		wantUser   string
		wantSecret string
	}{
		{
			name: "password grant",
			run: func(e *TokenExchanger, conn Requester) (types.ParsedResponse, error) {
				return e.PasswordGrant(context.Background(), conn, "app-id", "app-secret", "user", "hunter2")
			},
			wantForm: map[string]string{
				"grant_type": "password",
				"username":   "user",
				"password":   "hunter2",
			},
			wantUser:   "app-id",
			wantSecret: "app-secret",
		},
		{
			name: "code grant uses empty secret",
			run: func(e *TokenExchanger, conn Requester) (types.ParsedResponse, error) {
				return e.CodeGrant(context.Background(), conn, "app-id", "the-code", "http://127.0.0.1:7878/")
			},
			wantForm: map[string]string{
				"grant_type":   "authorization_code",
				"code":         "the-code",
				"redirect_uri": "http://127.0.0.1:7878/",
			},
			wantUser:   "app-id",
			wantSecret: "",
		},
		{
			name: "refresh grant uses empty secret",
			run: func(e *TokenExchanger, conn Requester) (types.ParsedResponse, error) {
				return e.RefreshGrant(context.Background(), conn, "app-id", "refresh-me")
			},
			wantForm: map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": "refresh-me",
			},
			wantUser:   "app-id",
			wantSecret: "",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exchanger, err := NewTokenExchanger("https://www.reddit.com/", "test-agent")
			if err != nil {
				t.Fatalf("failed to create exchanger: %v", err)
			}

			conn := &stubRequester{resp: types.ParsedResponse{"access_token": "T"}}
			resp, err := tc.run(exchanger, conn)
			if err != nil {
				t.Fatalf("exchange failed: %v", err)
			}
			if token, _ := resp.Get("access_token"); token != "T" {
				t.Errorf("expected response to pass through, got %v", resp)
			}

			req := conn.lastReq
			if req == nil {
				t.Fatal("no request was executed")
			}
			if req.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", req.Method)
			}
			if req.URL.String() != exchanger.TokenURL() {
				t.Errorf("expected request to %q, got %q", exchanger.TokenURL(), req.URL)
			}
			if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
				t.Errorf("expected form content type, got %q", got)
			}
			if got := req.Header.Get("User-Agent"); got != "test-agent" {
				t.Errorf("expected user agent %q, got %q", "test-agent", got)
			}

			user, secret, ok := req.BasicAuth()
			if !ok {
				t.Fatal("expected basic auth to be set")
			}
			if user != tc.wantUser || secret != tc.wantSecret {
				t.Errorf("expected basic auth %q:%q, got %q:%q", tc.wantUser, tc.wantSecret, user, secret)
			}

			for key, want := range tc.wantForm {
				if got := conn.lastForm.Get(key); got != want {
					t.Errorf("expected form field %s=%q, got %q", key, want, got)
				}
			}
			if len(conn.lastForm) != len(tc.wantForm) {
				t.Errorf("expected %d form fields, got %v", len(tc.wantForm), conn.lastForm)
			}
		})
	}
}

func TestExchangeWrapsTransportErrors(t *testing.T) {
	t.Parallel()

	exchanger, err := NewTokenExchanger("https://www.reddit.com/", "test-agent")
	if err != nil {
		t.Fatalf("failed to create exchanger: %v", err)
	}

	cause := errors.New("connection refused")
	conn := &stubRequester{err: cause}

	_, err = exchanger.PasswordGrant(context.Background(), conn, "id", "secret", "user", "pass")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var reqErr *pkgerrs.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *errors.RequestError, got %T: %v", err, err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to unwrap to the transport cause")
	}
}
