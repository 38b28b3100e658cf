package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"callpulse/internal/assistant"
	"callpulse/internal/charts"
	"callpulse/internal/dataset"
	"callpulse/internal/navigation"
	"callpulse/internal/registry"
	"callpulse/internal/session"
)

type stateBody struct {
	State navigation.State           `json:"state"`
	Panel navigation.PanelDescriptor `json:"panel"`
}

func stateResponse(s *session.Session) stateBody {
	st := s.Nav.Snapshot()
	return stateBody{State: st, Panel: navigation.Resolve(st)}
}

func (r *Router) apiState(w http.ResponseWriter, req *http.Request, s *session.Session) {
	respondJSON(w, stateResponse(s))
}

func (r *Router) apiLocations(w http.ResponseWriter, req *http.Request, s *session.Session) {
	respondJSON(w, map[string]any{
		"locations":    r.d.Registry.All(),
		"overview":     r.d.Bundle.Overview,
		"inconsistent": r.d.Registry.Inconsistencies(),
	})
}

type locationBody struct {
	Location navigation.LocationDetail           `json:"location"`
	Summary  registry.LocationSummary            `json:"summary"`
	KPIs     []dataset.KPI                       `json:"kpis"`
	Topics   dataset.Topics                      `json:"topics"`
	Calls    map[dataset.Category][]dataset.Call `json:"calls"`
}

func (r *Router) apiLocation(w http.ResponseWriter, req *http.Request, s *session.Session) {
	summary, ok := r.d.Registry.Lookup(req.PathValue("id"))
	if !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	calls, err := r.d.Store.CallsForLocation(req.Context(), summary.ID)
	if err != nil {
		r.storeError(w, err)
		return
	}
	content, _ := r.d.Bundle.Detail(summary.ID)
	order := dataset.TopicOrder(req.URL.Query().Get("topics"))
	if order == "" {
		order = dataset.TopicsByMentions
	}
	respondJSON(w, locationBody{
		Location: navigation.DetailFromSummary(summary),
		Summary:  summary,
		KPIs:     content.KPIs,
		Topics:   content.Topics.Sorted(order),
		Calls:    calls,
	})
}

func (r *Router) apiChart(w http.ResponseWriter, req *http.Request, s *session.Session) {
	summary, ok := r.d.Registry.Lookup(req.PathValue("id"))
	if !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	palette := charts.LightPalette
	if s.Nav.Snapshot().Chrome.DarkMode {
		palette = charts.DarkPalette
	}
	var buf bytes.Buffer
	d := navigation.DetailFromSummary(summary)
	if err := charts.WritePNG(&buf, d.Location, charts.CallMix(d), palette); err != nil {
		r.logger.Error("chart", zap.String("location", d.ID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

type transcriptBody struct {
	Call  dataset.Call             `json:"call"`
	Lines []dataset.TranscriptLine `json:"lines"`
}

func (r *Router) apiTranscript(w http.ResponseWriter, req *http.Request, s *session.Session) {
	ctx := req.Context()
	call, err := r.d.Store.Call(ctx, req.PathValue("id"))
	if err != nil {
		r.storeError(w, err)
		return
	}
	lines, err := r.d.Store.Transcript(ctx, call.ID)
	if err != nil {
		r.storeError(w, err)
		return
	}
	respondJSON(w, transcriptBody{Call: call, Lines: lines})
}

type coachingBody struct {
	Call     dataset.Call     `json:"call"`
	Coaching dataset.Coaching `json:"coaching"`
}

func (r *Router) apiCoaching(w http.ResponseWriter, req *http.Request, s *session.Session) {
	ctx := req.Context()
	call, err := r.d.Store.Call(ctx, req.PathValue("id"))
	if err != nil {
		r.storeError(w, err)
		return
	}
	c, err := r.d.Store.Coaching(ctx, call.ID)
	if err != nil {
		r.storeError(w, err)
		return
	}
	respondJSON(w, coachingBody{Call: call, Coaching: c})
}

func (r *Router) apiNotifications(w http.ResponseWriter, req *http.Request, s *session.Session) {
	notes, err := r.d.Store.ListNotifications(req.Context())
	if err != nil {
		r.storeError(w, err)
		return
	}
	respondJSON(w, map[string]any{"items": notes, "unread": unread(notes)})
}

// apiNotificationsRead marks one notification ({"id": "3"}) or all of them
// ({"all": true}) as read.
func (r *Router) apiNotificationsRead(w http.ResponseWriter, req *http.Request, s *session.Session) {
	var body struct {
		ID  string `json:"id"`
		All bool   `json:"all"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := req.Context()
	switch {
	case body.All:
		n, err := r.d.Store.MarkAllNotificationsRead(ctx)
		if err != nil {
			r.storeError(w, err)
			return
		}
		respondJSON(w, map[string]any{"marked": n})
	case body.ID != "":
		if err := r.d.Store.MarkNotificationRead(ctx, body.ID); err != nil {
			r.storeError(w, err)
			return
		}
		respondJSON(w, map[string]any{"marked": 1})
	default:
		http.Error(w, "id or all required", http.StatusBadRequest)
	}
}

type assistantBody struct {
	Answer   string              `json:"answer"`
	Messages []assistant.Message `json:"messages"`
}

func (r *Router) apiAssistant(w http.ResponseWriter, req *http.Request, s *session.Session) {
	if s.Chat == nil {
		http.Error(w, "assistant unavailable", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := s.Chat.Ask(body.Query)
	if errors.Is(err, assistant.ErrEmptyQuery) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, assistantBody{Answer: answer, Messages: s.Chat.Messages()})
}
