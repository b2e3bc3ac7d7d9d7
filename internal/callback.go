package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	pkgerrs "github.com/frjonsen/orca/pkg/errors"
)

const (
	defaultSuccessBody = "Authorization successful!"
	defaultErrorBody   = "Authorization failed"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// RejectReason classifies why the callback request failed validation.
type RejectReason int

const (
	// RejectNone means the callback carried a usable authorization code.
	RejectNone RejectReason = iota

	// RejectRemoteError means the redirect carried an error parameter,
	// typically because the user denied consent.
	RejectRemoteError

	// RejectMissingState means the redirect carried no state parameter.
	RejectMissingState

	// RejectStateMismatch means the redirect state did not match the value
	// generated for this attempt.
	RejectStateMismatch
)

// CallbackResult is the terminal outcome of the single callback request.
type CallbackResult struct {
	// Code is the authorization code when Reason is RejectNone.
	Code string

	// Reason classifies the rejection; RejectNone on success.
	Reason RejectReason

	// ErrorCode is the remote error code when Reason is RejectRemoteError.
	ErrorCode string

	// ErrorDescription is the optional remote error description.
	ErrorDescription string
}

// Succeeded reports whether the callback delivered an authorization code.
func (r CallbackResult) Succeeded() bool {
	return r.Reason == RejectNone
}

// CallbackServer is the ephemeral loopback HTTP listener that receives the
// authorization redirect for an installed app. It services exactly one
// request, delivers exactly one outcome, and never returns to listening:
// later requests are answered with 400 and the listener is torn down by
// Stop regardless of how the attempt ended.
type CallbackServer struct {
	addr        string
	state       string
	successPage []byte
	errorPage   []byte
	logger      *slog.Logger

	server   *http.Server
	listener net.Listener

	resultCh   chan CallbackResult
	serveErrCh chan error
	once       sync.Once
	stopOnce   sync.Once
}

// NewCallbackServer creates a callback server for one authorization attempt.
// addr is the loopback host:port from the registered redirect URI; state is
// the value generated for this attempt. successPage and errorPage are
// optional pre-rendered response bodies shown to the user's browser.
func NewCallbackServer(addr, state string, successPage, errorPage []byte, logger *slog.Logger) *CallbackServer {
	return &CallbackServer{
		addr:        addr,
		state:       state,
		successPage: successPage,
		errorPage:   errorPage,
		logger:      logger,
		resultCh:    make(chan CallbackResult, 1),
		serveErrCh:  make(chan error, 1),
	}
}

// Start binds the listener and begins serving. The bind must complete (or
// fail) before the browser-side consent can finish, so this returns only
// after the port is held.
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return &pkgerrs.BindError{Addr: s.addr, Err: err}
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.serveErrCh <- err:
			default:
			}
		}
	}()

	return nil
}

// Addr returns the bound listener address.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Result returns the channel carrying the single callback outcome.
func (s *CallbackServer) Result() <-chan CallbackResult {
	return s.resultCh
}

// ServeFailure returns the channel carrying a listener failure, if one
// occurs before the callback is received.
func (s *CallbackServer) ServeFailure() <-chan error {
	return s.serveErrCh
}

// handleCallback admits exactly one request into validation.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback validates the query parameters of the single admitted
// request and delivers the outcome. The checks are ordered: a remote error
// parameter wins before state is consulted at all, then a missing state,
// then a state mismatch.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var result CallbackResult
	switch {
	case query.Get("error") != "":
		result = CallbackResult{
			Reason:           RejectRemoteError,
			ErrorCode:        query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}
		if s.logger != nil {
			s.logger.Warn("authorization rejected by remote", "error", result.ErrorCode)
		}
		s.writePage(w, s.errorPage, defaultErrorBody)

	case !query.Has("state"):
		result = CallbackResult{Reason: RejectMissingState}
		if s.logger != nil {
			s.logger.Warn("authorization callback carried no state")
		}
		s.writePage(w, nil, defaultErrorBody)

	case query.Get("state") != s.state:
		result = CallbackResult{Reason: RejectStateMismatch}
		if s.logger != nil {
			// Values are never logged; a mismatch may be attacker-supplied.
			s.logger.Error("authorization callback state mismatch",
				"got_len", len(query.Get("state")),
				"want_len", len(s.state),
			)
		}
		s.writePage(w, s.errorPage, defaultErrorBody)

	default:
		result = CallbackResult{Code: query.Get("code")}
		s.writePage(w, s.successPage, defaultSuccessBody)
	}

	// Buffered one-shot hand-off; processCallback runs at most once, so
	// this never blocks and the consumer receives exactly one outcome.
	s.resultCh <- result
}

// writePage writes the configured body, or the fallback when none is set.
func (s *CallbackServer) writePage(w http.ResponseWriter, page []byte, fallback string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if len(page) > 0 {
		_, _ = w.Write(page)
		return
	}
	_, _ = w.Write([]byte(fallback))
}

// Stop tears the listener down and releases the port. It is idempotent and
// runs on every exit path of the authorization attempt; shutdown errors are
// logged, not escalated.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(ctx); err != nil && s.logger != nil {
				s.logger.Debug("callback server shutdown", "error", err)
			}
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}
