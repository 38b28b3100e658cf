package navigation

// PanelKind identifies which panel the shell renders.
type PanelKind string

const (
	PanelPortfolio         PanelKind = "portfolio"
	PanelLocationsOverview PanelKind = "locations_overview"
	PanelLocationDetail    PanelKind = "location_detail"
)

// BackAction is the transition wired to the detail panel's back button.
type BackAction string

const (
	BackNone                BackAction = ""
	BackToPortfolio         BackAction = "to_portfolio"
	BackToLocationsOverview BackAction = "to_locations_overview"
)

// Label is the button text shown for the back action.
func (b BackAction) Label() string {
	switch b {
	case BackToPortfolio:
		return "Back to Portfolio Dashboard"
	case BackToLocationsOverview:
		return "Back to Locations Overview"
	default:
		return ""
	}
}

// PanelDescriptor tells the shell what to render. It is a comparable value so
// two resolutions of the same state can be checked with ==.
type PanelDescriptor struct {
	Kind     PanelKind      `json:"kind"`
	Location LocationDetail `json:"location"`
	Back     BackAction     `json:"back,omitempty"`
}

// HasLocation reports whether the descriptor carries a drilled-in location.
func (d PanelDescriptor) HasLocation() bool { return d.Kind == PanelLocationDetail }

// Resolve maps a state to the panel to render. A selection always wins over the
// active page; unknown pages fall back to the portfolio panel.
func Resolve(s State) PanelDescriptor {
	if s.Selected != nil {
		return PanelDescriptor{
			Kind:     PanelLocationDetail,
			Location: *s.Selected,
			Back:     backFor(s.Origin),
		}
	}
	switch s.ActivePage {
	case PagePortfolio:
		return PanelDescriptor{Kind: PanelPortfolio}
	case PageLocations:
		return PanelDescriptor{Kind: PanelLocationsOverview}
	default:
		return PanelDescriptor{Kind: PanelPortfolio}
	}
}

func backFor(o Origin) BackAction {
	if o == OriginLocations {
		return BackToLocationsOverview
	}
	// A selection without a recorded origin came through the shell-level path.
	return BackToPortfolio
}
