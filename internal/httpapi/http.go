package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"callpulse/internal/assistant"
	"callpulse/internal/auth"
	"callpulse/internal/dataset"
	"callpulse/internal/events"
	"callpulse/internal/registry"
	"callpulse/internal/session"
	"callpulse/internal/store"
	"callpulse/metrics"
	"callpulse/queue"
)

// SessionCookie carries the session id.
const SessionCookie = "callpulse_session"

// Deps are the collaborators the router serves from.
type Deps struct {
	Bundle    dataset.Bundle
	Registry  *registry.Registry
	Store     *store.Store
	Sessions  *session.Manager
	Auth      *auth.Authenticator
	Assistant *assistant.Assistant
	Queue     *queue.Queue
	Metrics   *metrics.Metrics
	Bus       *events.Bus
	Logger    *zap.Logger
	Now       func() time.Time
	// SecureCookie marks the session cookie Secure (HTTPS deployments).
	SecureCookie bool
}

// Router builds HTTP handlers for the dashboard, /api and /ops.
type Router struct {
	d      Deps
	logger *zap.Logger
}

func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Router{d: d, logger: d.Logger.Named("http")}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.Handle("GET /static/", http.FileServerFS(webFS))

	mux.HandleFunc("GET /{$}", r.shell)
	mux.HandleFunc("GET /login", r.loginForm)
	mux.HandleFunc("POST /login", r.login)
	mux.HandleFunc("POST /logout", r.logout)

	mux.HandleFunc("POST /nav/page", r.withSession(r.navPage))
	mux.HandleFunc("POST /nav/select", r.withSession(r.navSelect))
	mux.HandleFunc("POST /nav/view", r.withSession(r.navView))
	mux.HandleFunc("POST /nav/back", r.withSession(r.navBack))
	mux.HandleFunc("POST /nav/chrome", r.withSession(r.navChrome))
	mux.HandleFunc("POST /nav/range", r.withSession(r.navRange))
	mux.HandleFunc("POST /assistant", r.withSession(r.assistantForm))
	mux.HandleFunc("GET /calls/{id}/transcript", r.withSession(r.transcriptPage))
	mux.HandleFunc("GET /calls/{id}/coaching", r.withSession(r.coachingPage))

	mux.HandleFunc("GET /api/state", r.withSession(r.apiState))
	mux.HandleFunc("GET /api/locations", r.withSession(r.apiLocations))
	mux.HandleFunc("GET /api/locations/{id}", r.withSession(r.apiLocation))
	mux.HandleFunc("GET /api/locations/{id}/chart.png", r.withSession(r.apiChart))
	mux.HandleFunc("GET /api/calls/{id}/transcript", r.withSession(r.apiTranscript))
	mux.HandleFunc("GET /api/calls/{id}/coaching", r.withSession(r.apiCoaching))
	mux.HandleFunc("GET /api/notifications", r.withSession(r.apiNotifications))
	mux.HandleFunc("POST /api/notifications/read", r.withSession(r.apiNotificationsRead))
	mux.HandleFunc("POST /api/assistant", r.withSession(r.apiAssistant))

	mux.HandleFunc("GET /ops/health", r.health)
	mux.HandleFunc("GET /ops/status", r.status)
	mux.HandleFunc("GET /ops/diagnostics", r.diagnostics)
}

// Handler returns a mux with every route registered.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	r.Register(mux)
	return mux
}

type sessionHandler func(w http.ResponseWriter, req *http.Request, s *session.Session)

// withSession resolves the session cookie. Pages redirect to the sign-in form
// when it is missing or expired; API calls get 401.
func (r *Router) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s, ok := r.currentSession(req)
		if !ok {
			if wantsJSON(req) {
				http.Error(w, "sign in required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, req, "/login", http.StatusSeeOther)
			return
		}
		h(w, req, s)
	}
}

func (r *Router) currentSession(req *http.Request) (*session.Session, bool) {
	c, err := req.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return r.d.Sessions.Get(c.Value)
}

func (r *Router) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.d.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.d.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// wantsJSON is true for /api paths and for clients that ask for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, "/api/") || strings.Contains(req.Header.Get("Accept"), "application/json")
}

func respondJSON(w http.ResponseWriter, payload any) {
	respondJSONStatus(w, http.StatusOK, payload)
}

func respondJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write json", zap.Error(err))
	}
}

// storeError maps store errors to status codes.
func (r *Router) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	r.logger.Error("store", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
