// Package server receives the OAuth redirect from Google and completes
// the authorization handshake.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/auth"
)

// Exchanger completes the code-for-token exchange.
type Exchanger interface {
	ExchangeCode(ctx context.Context, state, code string) (int64, error)
}

// Notifier is told which user just finished authorizing, so the bot
// can confirm in chat.
type Notifier interface {
	NotifyAuthorized(userID int64)
}

// Server is the HTTP listener for the OAuth redirect.
type Server struct {
	exchanger Exchanger
	notifier  Notifier
	log       zerolog.Logger
	http      *http.Server
}

func New(addr string, exchanger Exchanger, notifier Notifier, log zerolog.Logger) *Server {
	s := &Server{
		exchanger: exchanger,
		notifier:  notifier,
		log:       log.With().Str("component", "oauth_server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/oauth2callback", s.handleCallback)
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("oauth callback server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		s.log.Warn().Str("error", errCode).Msg("authorization denied by user")
		s.renderError(w, http.StatusBadRequest,
			"Authorization was cancelled. Go back to the bot and run /auth to try again.")
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		s.renderError(w, http.StatusBadRequest,
			"The callback is missing required parameters. Run /auth in the bot to get a fresh link.")
		return
	}

	userID, err := s.exchanger.ExchangeCode(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidState):
			s.log.Warn().Msg("callback with unknown or expired state")
			s.renderError(w, http.StatusBadRequest,
				"This authorization link has expired or was already used. Run /auth in the bot for a new one.")
		default:
			s.log.Error().Err(err).Msg("code exchange failed")
			s.renderError(w, http.StatusBadGateway,
				"Google did not accept the authorization. Run /auth in the bot and try again.")
		}
		return
	}

	s.log.Info().Int64("user_id", userID).Msg("authorization completed")
	s.notifier.NotifyAuthorized(userID)
	s.renderSuccess(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) renderSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPage, message)
}

const successPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authorization complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>&#9989; Authorization complete</h1>
<p>You can close this tab and return to the Telegram chat.</p>
</body>
</html>`

const errorPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authorization failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>&#10060; Authorization failed</h1>
<p>%s</p>
</body>
</html>`
