package navigation

import (
	"strings"

	"callpulse/internal/registry"
)

// Page is a top-level dashboard page selectable from the sidebar.
type Page string

const (
	PagePortfolio Page = "portfolio"
	PageLocations Page = "locations"
	PageReports   Page = "reports"
	PageSettings  Page = "settings"
)

// Pages lists the sidebar pages in display order.
var Pages = []Page{PagePortfolio, PageLocations, PageReports, PageSettings}

// ParsePage normalizes user input. Unknown values are kept as-is; the resolver
// treats them as the default page.
func ParsePage(raw string) Page {
	return Page(strings.ToLower(strings.TrimSpace(raw)))
}

// Implemented reports whether p has its own panel. Reports and settings are placeholders.
func (p Page) Implemented() bool {
	return p == PagePortfolio || p == PageLocations
}

// Origin records which entry point opened the current drill-down.
type Origin string

const (
	OriginNone      Origin = ""
	OriginPortfolio Origin = "portfolio"
	OriginLocations Origin = "locations"
)

// LocationDetail is the projection of a registry entry shown by the detail panel.
type LocationDetail struct {
	ID           string `json:"id"`
	Location     string `json:"location"`
	GoogleRating string `json:"google_rating"`
	TotalCalls   int    `json:"total_calls"`
	MissedCalls  int    `json:"missed_calls"`
	SalesCalls   int    `json:"sales_calls"`
	ServiceCalls int    `json:"service_calls"`
	OtherCalls   int    `json:"other_calls"`
}

// DetailFromSummary renames Name to Location and InboundCalls to TotalCalls;
// every other counter is copied verbatim.
func DetailFromSummary(s registry.LocationSummary) LocationDetail {
	return LocationDetail{
		ID:           s.ID,
		Location:     s.Name,
		GoogleRating: s.GoogleRating,
		TotalCalls:   s.InboundCalls,
		MissedCalls:  s.MissedCalls,
		SalesCalls:   s.SalesCalls,
		ServiceCalls: s.ServiceCalls,
		OtherCalls:   s.OtherCalls,
	}
}

// State is the complete navigation state of one signed-in session.
// Selected and Origin are either both set or both empty.
type State struct {
	ActivePage Page            `json:"active_page"`
	Selected   *LocationDetail `json:"selected_location,omitempty"`
	Origin     Origin          `json:"origin,omitempty"`
	Chrome     Chrome          `json:"chrome"`
}

// InitialState is the state of a freshly mounted shell.
func InitialState(chrome Chrome) State {
	chrome.SidebarOpen = false
	return State{ActivePage: PagePortfolio, Chrome: chrome}
}

// Clone returns a deep copy so callers cannot reach the holder's selection.
func (s State) Clone() State {
	if s.Selected != nil {
		sel := *s.Selected
		s.Selected = &sel
	}
	return s
}

// external is the selection made outside the overview panel, if one is shown.
func (s State) external() *LocationDetail {
	if s.Origin == OriginPortfolio {
		return s.Selected
	}
	return nil
}

// EffectiveSelection applies the overview precedence rule: a selection supplied
// from outside the overview panel wins over one the panel made itself.
func EffectiveSelection(external, local *LocationDetail) *LocationDetail {
	if external != nil {
		return external
	}
	return local
}
