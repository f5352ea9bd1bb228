package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rolegate/rolegate/pkg/config"
	"github.com/rolegate/rolegate/pkg/httputil"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/verify"
)

// ServerParams collects the server's dependencies.
type ServerParams struct {
	Config   config.ServerConfig
	Auth     Authenticator
	Linker   *verify.Linker
	Registry *verify.PendingRegistry
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	// MetricsEnabled exposes /metrics when set.
	MetricsEnabled bool
	// CookieSecret signs the transient flow cookie.
	CookieSecret string
}

// Server is the verification web frontend.
type Server struct {
	httpServer *http.Server
	config     config.ServerConfig
	auth       Authenticator
	linker     *verify.Linker
	registry   *verify.PendingRegistry
	logger     *observability.Logger
	metrics    *observability.Metrics
	cookies    *flowCookies
}

// NewServer builds the router and HTTP server.
func NewServer(p ServerParams) *Server {
	s := &Server{
		config:   p.Config,
		auth:     p.Auth,
		linker:   p.Linker,
		registry: p.Registry,
		logger:   p.Logger,
		metrics:  p.Metrics,
		cookies:  newFlowCookies(p.CookieSecret, strings.HasPrefix(p.Config.AppURL, "https://")),
	}

	router := mux.NewRouter()
	router.HandleFunc("/verify", s.handleVerify).Methods(http.MethodGet)
	router.HandleFunc("/auth/callback", s.handleAuthCallback).Methods(http.MethodGet)
	router.HandleFunc("/link-callback", s.handleLinkCallback).Methods(http.MethodGet)
	router.HandleFunc("/api/verify-status/{token}", s.handleVerifyStatus).Methods(http.MethodGet)
	router.HandleFunc("/success", s.handleSuccess).Methods(http.MethodGet)
	router.HandleFunc("/error", s.handleError).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if p.MetricsEnabled {
		router.Handle("/metrics", p.Metrics.Handler()).Methods(http.MethodGet)
	}

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(p.Logger),
		httputil.RecoveryMiddleware(p.Logger),
	)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(p.Config.Host, p.Config.Port),
		Handler:      chain(router),
		ReadTimeout:  p.Config.ReadTimeout,
		WriteTimeout: p.Config.WriteTimeout,
		IdleTimeout:  p.Config.IdleTimeout,
	}
	return s
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Web server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleVerify is the landing endpoint from the /verify command reply.
// It pins the token in the flow cookie and sends the user to the SSO
// login.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("state")
	if token == "" {
		s.redirectError(w, r, "server_error")
		return
	}

	_, ok, err := s.registry.Lookup(r.Context(), token)
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up pending verification")
		s.redirectError(w, r, "server_error")
		return
	}
	if !ok {
		s.redirectError(w, r, "expired")
		return
	}

	s.cookies.Set(w, token)
	http.Redirect(w, r, s.auth.AuthURL(token), http.StatusFound)
}

// handleAuthCallback receives the SSO login leg and runs the first
// state machine step.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := s.callbackToken(w, r)
	if !ok {
		return
	}

	subject, err := s.auth.Exchange(r.Context(), r.URL.Query().Get("code"), false)
	if err != nil {
		s.logger.WithError(err).Error("Failed to authenticate callback")
		s.redirectError(w, r, "server_error")
		return
	}

	result, err := s.linker.Start(r.Context(), token, subject)
	if err != nil {
		s.logger.WithError(err).Error("Linking step failed")
		s.metrics.VerificationsFailed.WithLabelValues("link_start").Inc()
		s.redirectError(w, r, "server_error")
		return
	}

	if result.Outcome == verify.OutcomeAwaitingExternalAuth {
		http.Redirect(w, r, result.LinkURL, http.StatusFound)
		return
	}
	s.finishFlow(w, r, result.Outcome)
}

// handleLinkCallback receives the identity-link leg and runs the
// second state machine step.
func (s *Server) handleLinkCallback(w http.ResponseWriter, r *http.Request) {
	token, ok := s.callbackToken(w, r)
	if !ok {
		return
	}

	subject, err := s.auth.Exchange(r.Context(), r.URL.Query().Get("code"), true)
	if err != nil {
		s.logger.WithError(err).Error("Failed to authenticate link callback")
		s.redirectError(w, r, "server_error")
		return
	}

	result, err := s.linker.Resume(r.Context(), token, subject)
	if err != nil {
		s.logger.WithError(err).Error("Linking step failed")
		s.metrics.VerificationsFailed.WithLabelValues("link_resume").Inc()
		s.redirectError(w, r, "server_error")
		return
	}
	s.finishFlow(w, r, result.Outcome)
}

// callbackToken validates that the callback belongs to the flow this
// browser started: the state parameter must match the signed cookie.
func (s *Server) callbackToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		s.logger.WithField("oidc_error", errParam).Warn("Provider returned an error")
		s.finishFlow(w, r, verify.OutcomeNotLinked)
		return "", false
	}

	token, err := s.cookies.Token(r)
	if err != nil || token != r.URL.Query().Get("state") {
		s.redirectError(w, r, "server_error")
		return "", false
	}
	return token, true
}

// finishFlow maps a terminal outcome onto the success or error page.
func (s *Server) finishFlow(w http.ResponseWriter, r *http.Request, outcome verify.Outcome) {
	s.cookies.Clear(w)

	if outcome == verify.OutcomeLinked {
		http.Redirect(w, r, "/success", http.StatusFound)
		return
	}
	s.metrics.VerificationsFailed.WithLabelValues(outcome.String()).Inc()
	s.redirectError(w, r, outcome.String())
}

func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/error?msg="+url.QueryEscape(msg), http.StatusFound)
}

// handleVerifyStatus is the polling endpoint the command reply links
// to, reporting whether the token is still pending.
func (s *Server) handleVerifyStatus(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	pending, ok, err := s.registry.Lookup(r.Context(), token)
	if err != nil {
		httputil.WriteInternalError(w, fmt.Errorf("failed to look up verification"))
		return
	}
	if !ok {
		httputil.WriteSuccess(w, map[string]string{"status": "not_found"})
		return
	}
	httputil.WriteSuccess(w, map[string]string{
		"status":       "pending",
		"display_name": pending.DisplayName,
	})
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, pageData{
		Title:   "Verification complete",
		Message: "Your roles are being assigned. You can close this tab and head back to Discord.",
		Class:   "ok",
	})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	message, ok := errorMessages[r.URL.Query().Get("msg")]
	if !ok {
		message = errorMessages["server_error"]
	}
	s.renderPage(w, pageData{
		Title:   "Verification failed",
		Message: message,
		Class:   "err",
	})
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to render page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "healthy"})
}
