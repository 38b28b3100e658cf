package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"callpulse/formatting"
	"callpulse/internal/assistant"
	"callpulse/internal/auth"
	"callpulse/internal/events"
	"callpulse/internal/navigation"
	"callpulse/internal/session"
)

func (r *Router) shell(w http.ResponseWriter, req *http.Request) {
	s, ok := r.currentSession(req)
	if !ok {
		http.Redirect(w, req, "/login", http.StatusSeeOther)
		return
	}
	view, err := r.buildShell(req.Context(), s)
	if err != nil {
		r.logger.Error("build shell", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	r.render(w, http.StatusOK, "shell.html", view)
}

type loginView struct {
	Identity string
	Error    string
}

func (r *Router) loginForm(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.currentSession(req); ok {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return
	}
	r.render(w, http.StatusOK, "login.html", loginView{})
}

func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	identity := req.PostFormValue("identity")
	user, err := r.d.Auth.Verify(identity, req.PostFormValue("password"))
	if err != nil {
		r.d.Metrics.RecordSignIn(false)
		r.publish(events.Event{Kind: events.KindSignInFailed, Subject: strings.TrimSpace(identity)})
		r.logger.Info("sign-in rejected", zap.String("identity", identity))
		r.render(w, http.StatusUnauthorized, "login.html", loginView{Identity: identity, Error: auth.FailureMessage})
		return
	}
	r.d.Metrics.RecordSignIn(true)
	s := r.d.Sessions.Create(user)
	r.setSessionCookie(w, s.ID)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	if c, err := req.Cookie(SessionCookie); err == nil {
		r.d.Sessions.Delete(c.Value)
	}
	r.clearSessionCookie(w)
	http.Redirect(w, req, "/login", http.StatusSeeOther)
}

func (r *Router) navPage(w http.ResponseWriter, req *http.Request, s *session.Session) {
	s.Nav.SetActivePage(navigation.ParsePage(req.FormValue("page")))
	r.afterNav(w, req, s)
}

func (r *Router) navSelect(w http.ResponseWriter, req *http.Request, s *session.Session) {
	// A miss keeps the current panel; the observer has already recorded it.
	_ = s.Nav.SelectLocation(strings.TrimSpace(req.FormValue("id")))
	r.afterNav(w, req, s)
}

func (r *Router) navView(w http.ResponseWriter, req *http.Request, s *session.Session) {
	_ = s.Nav.ViewFromOverview(strings.TrimSpace(req.FormValue("id")))
	r.afterNav(w, req, s)
}

func (r *Router) navBack(w http.ResponseWriter, req *http.Request, s *session.Session) {
	s.Nav.Back()
	r.afterNav(w, req, s)
}

func (r *Router) navChrome(w http.ResponseWriter, req *http.Request, s *session.Session) {
	if err := s.Nav.UpdateChrome(req.FormValue("action"), req.FormValue("arg")); err != nil {
		if errors.Is(err, navigation.ErrUnknownChromeAction) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.afterNav(w, req, s)
}

func (r *Router) navRange(w http.ResponseWriter, req *http.Request, s *session.Session) {
	name := req.FormValue("name")
	if _, err := formatting.ResolveDateRange(name, r.d.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Nav.SetDateRange(name)
	r.afterNav(w, req, s)
}

// assistantForm asks a question, or toggles the history list when
// toggle=history is posted.
func (r *Router) assistantForm(w http.ResponseWriter, req *http.Request, s *session.Session) {
	if s.Chat == nil {
		http.Error(w, "assistant unavailable", http.StatusServiceUnavailable)
		return
	}
	if req.FormValue("toggle") == "history" {
		s.Chat.ToggleHistory()
		r.afterNav(w, req, s)
		return
	}
	if _, err := s.Chat.Ask(req.FormValue("query")); err != nil && !errors.Is(err, assistant.ErrEmptyQuery) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.afterNav(w, req, s)
}

// afterNav answers a form post: JSON clients get the new state, browsers are
// sent back to the shell.
func (r *Router) afterNav(w http.ResponseWriter, req *http.Request, s *session.Session) {
	if wantsJSON(req) {
		respondJSON(w, stateResponse(s))
		return
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func (r *Router) publish(ev events.Event) {
	if r.d.Bus != nil {
		r.d.Bus.Publish(ev)
	}
}
