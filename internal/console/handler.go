// Package console is the operator-facing HTTP surface: login, catalog
// browsing and editing and submitting the session's order draft.
package console

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/salesdesk/internal/catalog"
	"github.com/xenking/salesdesk/internal/session"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

// SessionHeader carries the session ID returned by POST /session.
const SessionHeader = "X-Session-ID"

// Handler serves the console routes.
type Handler struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
}

// NewHandler constructs a Handler.
func NewHandler(sessions *session.Manager, cat *catalog.Catalog) *Handler {
	return &Handler{sessions: sessions, catalog: cat}
}

// Routes returns the console router. Every route except login requires the
// X-Session-ID header.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Post("/session", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Delete("/session", h.logout)
		r.Get("/session/catalog", h.listCatalog)

		r.Get("/draft", h.getDraft)
		r.Delete("/draft", h.resetDraft)
		r.Post("/draft/lines", h.addLine)
		r.Delete("/draft/lines/{lineID}", h.removeLine)
		r.Delete("/draft/lines/at/{index}", h.removeLineAt)
		r.Post("/draft/submit", h.submit)
	})
	return r
}

type sessionKey struct{}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			httpmiddleware.WriteDetail(w, http.StatusUnauthorized, "missing "+SessionHeader+" header")
			return
		}
		s, err := h.sessions.Get(id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// SessionKey keys rate limiting by session, falling back to the client IP
// for anonymous requests.
func SessionKey(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return "session:" + id
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
