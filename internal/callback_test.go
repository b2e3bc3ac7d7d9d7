package internal

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	pkgerrs "github.com/frjonsen/orca/pkg/errors"
)

const testState = "abcdef0123456789"

// startCallbackServer binds a server on an ephemeral loopback port and
// registers its teardown.
func startCallbackServer(t *testing.T, successPage, errorPage []byte) *CallbackServer {
	t.Helper()

	server := NewCallbackServer("127.0.0.1:0", testState, successPage, errorPage, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start callback server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

// get performs a callback request and returns the status code and body.
func get(t *testing.T, server *CallbackServer, query string) (int, string) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("http://%s/?%s", server.Addr(), query))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read callback response: %v", err)
	}
	return resp.StatusCode, string(body)
}

// waitResult receives the single outcome or fails the test.
func waitResult(t *testing.T, server *CallbackServer) CallbackResult {
	t.Helper()

	select {
	case result := <-server.Result():
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("no callback outcome delivered")
		return CallbackResult{}
	}
}

func TestCallbackValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		query      string
		wantReason RejectReason
		wantCode   string
		wantError  string
		wantBody   string
	}{
		{
			name:       "matching state delivers code",
			query:      "state=" + testState + "&code=XYZ",
			wantReason: RejectNone,
			wantCode:   "XYZ",
			wantBody:   "Authorization successful!",
		},
		{
			name:       "mismatched state is rejected even with a code",
			query:      "state=wrong&code=XYZ",
			wantReason: RejectStateMismatch,
			wantBody:   "Authorization failed",
		},
		{
			name:       "error parameter wins before state is consulted",
			query:      "error=access_denied&state=wrong&code=XYZ",
			wantReason: RejectRemoteError,
			wantError:  "access_denied",
			wantBody:   "Authorization failed",
		},
		{
			name:       "missing state is rejected",
			query:      "code=XYZ",
			wantReason: RejectMissingState,
			wantBody:   "Authorization failed",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := startCallbackServer(t, nil, nil)
			status, body := get(t, server, tc.query)

			if status != http.StatusOK {
				t.Errorf("expected status 200, got %d", status)
			}
			if body != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, body)
			}

			result := waitResult(t, server)
			if result.Reason != tc.wantReason {
				t.Errorf("expected reason %v, got %v", tc.wantReason, result.Reason)
			}
			if result.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, result.Code)
			}
			if result.ErrorCode != tc.wantError {
				t.Errorf("expected error code %q, got %q", tc.wantError, result.ErrorCode)
			}
			if result.Succeeded() != (tc.wantReason == RejectNone) {
				t.Errorf("Succeeded() = %v for reason %v", result.Succeeded(), result.Reason)
			}
		})
	}
}

func TestCallbackConfiguredPages(t *testing.T) {
	t.Parallel()

	success := []byte("<html>all done</html>")
	failure := []byte("<html>nope</html>")

	t.Run("success page", func(t *testing.T) {
		t.Parallel()

		server := startCallbackServer(t, success, failure)
		_, body := get(t, server, "state="+testState+"&code=XYZ")
		if body != string(success) {
			t.Errorf("expected configured success page, got %q", body)
		}
		waitResult(t, server)
	})

	t.Run("error page on remote error", func(t *testing.T) {
		t.Parallel()

		server := startCallbackServer(t, success, failure)
		_, body := get(t, server, "error=access_denied")
		if body != string(failure) {
			t.Errorf("expected configured error page, got %q", body)
		}
		waitResult(t, server)
	})

	t.Run("generic body when state is missing", func(t *testing.T) {
		t.Parallel()

		server := startCallbackServer(t, success, failure)
		_, body := get(t, server, "code=XYZ")
		if body != "Authorization failed" {
			t.Errorf("expected generic failure body, got %q", body)
		}
		waitResult(t, server)
	})
}

func TestCallbackSingleUse(t *testing.T) {
	t.Parallel()

	server := startCallbackServer(t, nil, nil)

	status, _ := get(t, server, "state="+testState+"&code=first")
	if status != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", status)
	}

	result := waitResult(t, server)
	if result.Code != "first" {
		t.Fatalf("expected code from first request, got %q", result.Code)
	}

	// The second exchange must be refused and must not deliver an outcome.
	status, _ = get(t, server, "state="+testState+"&code=second")
	if status != http.StatusBadRequest {
		t.Errorf("expected status 400 for second request, got %d", status)
	}

	select {
	case extra := <-server.Result():
		t.Errorf("unexpected second outcome: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCallbackBindFailure(t *testing.T) {
	t.Parallel()

	holder, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer holder.Close()

	server := NewCallbackServer(holder.Addr().String(), testState, nil, nil, nil)
	err = server.Start()
	if err == nil {
		server.Stop()
		t.Fatal("expected bind failure on an occupied port")
	}

	var bindErr *pkgerrs.BindError
	if !errors.As(err, &bindErr) {
		t.Errorf("expected *errors.BindError, got %T: %v", err, err)
	}
}

func TestCallbackStopReleasesPort(t *testing.T) {
	t.Parallel()

	server := startCallbackServer(t, nil, nil)
	addr := server.Addr()
	server.Stop()
	// Stop is idempotent.
	server.Stop()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("port was not released after Stop: %v", err)
	}
	listener.Close()
}
