package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
)

type sessionKey struct{}

func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domain.Session)
	return s, ok
}

type Middleware struct {
	svc    *Service
	logger *slog.Logger
}

func NewMiddleware(svc *Service, logger *slog.Logger) *Middleware {
	return &Middleware{svc: svc, logger: logger}
}

// Require rejects requests without a valid bearer token and otherwise puts
// the caller's session on the request context.
func (m *Middleware) Require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			httpjson.WriteError(w, m.logger, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := m.svc.ParseToken(raw)
		if err != nil {
			m.logger.Debug("rejected token", "error", err)
			httpjson.WriteError(w, m.logger, http.StatusUnauthorized, "invalid token")
			return
		}

		h(w, r.WithContext(WithSession(r.Context(), session)))
	}
}

// RequireAdmin is Require plus a role check.
func (m *Middleware) RequireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return m.Require(func(w http.ResponseWriter, r *http.Request) {
		if s, _ := SessionFrom(r.Context()); !s.IsAdmin() {
			httpjson.WriteError(w, m.logger, http.StatusForbidden, "admin role required")
			return
		}
		h(w, r)
	})
}
