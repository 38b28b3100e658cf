package httpapi

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"callpulse/formatting"
	"callpulse/internal/assistant"
	"callpulse/internal/dataset"
	"callpulse/internal/navigation"
	"callpulse/internal/registry"
	"callpulse/internal/session"
	"callpulse/internal/store"
)

//go:embed templates/*.html static/*
var webFS embed.FS

var pageFuncs = template.FuncMap{
	"trend": func(s string) string { return string(formatting.ClassifyTrend(s)) },
}

var pages = template.Must(template.New("").Funcs(pageFuncs).ParseFS(webFS, "templates/*.html"))

func (r *Router) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("render", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type pageLink struct {
	Page        navigation.Page
	Label       string
	Active      bool
	Placeholder bool
}

var pageLabels = map[navigation.Page]string{
	navigation.PagePortfolio: "Portfolio",
	navigation.PageLocations: "Locations",
	navigation.PageReports:   "Reports",
	navigation.PageSettings:  "Settings",
}

// overviewRow offers a drill-down only for flagged rows the registry can
// resolve; other rows are listed without one.
type overviewRow struct {
	dataset.OverviewRow
	CanView bool
}

type reviewTable struct {
	Category    dataset.Category
	Title       string
	MetricLabel string
	Calls       []dataset.Call
}

type detailView struct {
	Location  navigation.LocationDetail
	BackLabel string
	KPIs      []dataset.KPI
	Reviews   []reviewTable
	Missed    []dataset.Call
	Topics    dataset.Topics
	HasDetail bool
}

type shellView struct {
	User          string
	State         navigation.State
	Panel         navigation.PanelDescriptor
	Pages         []pageLink
	DateRange     formatting.DateRange
	Presets       []string
	Locations     []registry.LocationSummary
	Portfolio     []dataset.PortfolioList
	Overview      []overviewRow
	Detail        *detailView
	Notifications []dataset.Notification
	Unread        int
	Chat          []assistant.Message
}

func (r *Router) buildShell(ctx context.Context, s *session.Session) (shellView, error) {
	st := s.Nav.Snapshot()
	panel := navigation.Resolve(st)
	v := shellView{
		User:      s.User,
		State:     st,
		Panel:     panel,
		Presets:   formatting.DateRangePresets(),
		Locations: r.d.Registry.All(),
	}
	for _, p := range navigation.Pages {
		v.Pages = append(v.Pages, pageLink{
			Page:        p,
			Label:       pageLabels[p],
			Active:      st.ActivePage == p,
			Placeholder: !p.Implemented(),
		})
	}
	rangeName := st.Chrome.DateRange
	if rangeName == "" {
		rangeName = formatting.DefaultDateRange
	}
	if dr, err := formatting.ResolveDateRange(rangeName, r.d.Now()); err == nil {
		v.DateRange = dr
	}

	switch panel.Kind {
	case navigation.PanelPortfolio:
		v.Portfolio = r.d.Bundle.Portfolio
	case navigation.PanelLocationsOverview:
		for _, row := range r.d.Bundle.Overview {
			_, known := r.d.Registry.Lookup(row.ID)
			v.Overview = append(v.Overview, overviewRow{OverviewRow: row, CanView: row.HasProblems && known})
		}
	case navigation.PanelLocationDetail:
		d, err := r.detail(ctx, panel)
		if err != nil {
			return v, err
		}
		v.Detail = &d
	}

	notes, err := r.d.Store.ListNotifications(ctx)
	if err != nil {
		return v, err
	}
	v.Notifications = notes
	v.Unread = unread(notes)
	if s.Chat != nil {
		v.Chat = s.Chat.Messages()
	}
	return v, nil
}

// detail assembles the detail panel. A location without review content gets
// empty tables, never another location's data.
func (r *Router) detail(ctx context.Context, panel navigation.PanelDescriptor) (detailView, error) {
	d := detailView{Location: panel.Location, BackLabel: panel.Back.Label()}
	content, ok := r.d.Bundle.Detail(panel.Location.ID)
	d.HasDetail = ok
	d.KPIs = content.KPIs
	d.Topics = content.Topics.Sorted(dataset.TopicsByMentions)

	groups, err := r.d.Store.CallsForLocation(ctx, panel.Location.ID)
	if err != nil {
		return d, err
	}
	for _, c := range dataset.ReviewCategories {
		d.Reviews = append(d.Reviews, reviewTable{
			Category:    c,
			Title:       c.Title(),
			MetricLabel: c.MetricLabel(),
			Calls:       groups[c],
		})
	}
	d.Missed = groups[dataset.CategoryMissedCall]
	return d, nil
}

type callView struct {
	Call     dataset.Call
	Lines    []dataset.TranscriptLine
	Coaching *dataset.Coaching
	DarkMode bool
}

func (r *Router) transcriptPage(w http.ResponseWriter, req *http.Request, s *session.Session) {
	ctx := req.Context()
	call, err := r.d.Store.Call(ctx, req.PathValue("id"))
	if err != nil {
		r.storeError(w, err)
		return
	}
	lines, err := r.d.Store.Transcript(ctx, call.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.storeError(w, err)
		return
	}
	r.render(w, http.StatusOK, "call.html", callView{Call: call, Lines: lines, DarkMode: s.Nav.Snapshot().Chrome.DarkMode})
}

func (r *Router) coachingPage(w http.ResponseWriter, req *http.Request, s *session.Session) {
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
	r.render(w, http.StatusOK, "call.html", callView{Call: call, Coaching: &c, DarkMode: s.Nav.Snapshot().Chrome.DarkMode})
}

func unread(notes []dataset.Notification) int {
	n := 0
	for _, note := range notes {
		if !note.Read {
			n++
		}
	}
	return n
}
