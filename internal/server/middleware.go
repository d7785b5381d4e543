package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

type sessionKey struct{}

// sessionFrom returns the session attached by the auth middleware.
func sessionFrom(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}

// publicPath reports routes served without a session.
func publicPath(path string) bool {
	switch {
	case path == "/healthz", path == "/config.json", path == "/login", path == "/auth/callback":
		return true
	case strings.HasPrefix(path, "/static/"):
		return true
	}
	return false
}

// canonicalHost redirects requests for any other host to primary, keeping
// path and query.
func canonicalHost(primary string, next http.Handler) http.Handler {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if strings.EqualFold(host, primary) || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		scheme := "https"
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") == "http" {
			scheme = "http"
		}
		target := url.URL{Scheme: scheme, Host: primary, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		http.Redirect(w, r, target.String(), http.StatusPermanentRedirect)
	})
}

// authenticate attaches the session to protected requests and sends
// unauthenticated browsers to the login route. Requests no route matches get
// no session.
func (s *Server) authenticate(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, pattern := mux.Handler(r); pattern == "" {
			next.ServeHTTP(w, r)
			return
		}
		session := s.sessions.Get(w, r)
		if s.cfg.AuthURL != "" && !session.authenticated(s.now(), s.cfg.SessionRefresh.Std()) {
			if r.Method != http.MethodGet {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			session.beginLogin(r.URL.RequestURI(), false)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests writes one entry per request.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// compress gzips responses for clients that accept it.
func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
