package navigation

import (
	"errors"
	"fmt"
	"sync"

	"callpulse/internal/registry"
)

var (
	// ErrLocationNotFound is returned when a selection names an id the registry
	// does not know. State is left untouched.
	ErrLocationNotFound = errors.New("location not found")
	// ErrSelectionOverridden is returned when the overview tries to drill in while
	// a portfolio drill-down is on screen. The outside selection keeps priority.
	ErrSelectionOverridden = errors.New("selection supplied from portfolio takes precedence")
)

// Lookup resolves location ids. *registry.Registry satisfies it.
type Lookup interface {
	Lookup(id string) (registry.LocationSummary, bool)
}

// EventKind names a navigation transition or diagnostic.
type EventKind string

const (
	EventPageChanged         EventKind = "page_changed"
	EventLocationSelected    EventKind = "location_selected"
	EventSelectionCleared    EventKind = "selection_cleared"
	EventLookupMiss          EventKind = "lookup_miss"
	EventSelectionOverridden EventKind = "selection_overridden"
	EventReset               EventKind = "reset"
)

// Transition reports whether k is a user navigation step that changed the
// page or selection. Misses and overrides leave state alone; a reset ends
// the session rather than navigating.
func (k EventKind) Transition() bool {
	switch k {
	case EventPageChanged, EventLocationSelected, EventSelectionCleared:
		return true
	}
	return false
}

// Event describes one transition, emitted after the state change is visible.
type Event struct {
	Kind       EventKind `json:"kind"`
	Page       Page      `json:"page"`
	LocationID string    `json:"location_id,omitempty"`
	Origin     Origin    `json:"origin,omitempty"`
}

// Observer receives navigation events. It must not call back into the holder.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Holder is the single owner of a session's navigation state. Every transition
// runs under one lock, so readers never see a new page paired with a stale selection.
type Holder struct {
	mu       sync.Mutex
	lookup   Lookup
	observer Observer
	initial  State
	state    State
}

// NewHolder returns a holder in the initial state. observer may be nil.
func NewHolder(lookup Lookup, observer Observer, chrome Chrome) *Holder {
	initial := InitialState(chrome)
	return &Holder{lookup: lookup, observer: observer, initial: initial, state: initial.Clone()}
}

// Snapshot returns a copy of the current state.
func (h *Holder) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Clone()
}

// Panel resolves the current state.
func (h *Holder) Panel() PanelDescriptor {
	return Resolve(h.Snapshot())
}

// SetActivePage switches the top-level page. It always exits any drill-down and
// closes the mobile navigation overlay.
func (h *Holder) SetActivePage(page Page) {
	h.mu.Lock()
	h.state.ActivePage = page
	h.state.Selected = nil
	h.state.Origin = OriginNone
	h.state.Chrome.SidebarOpen = false
	h.mu.Unlock()
	h.emit(Event{Kind: EventPageChanged, Page: page})
}

// SelectLocation drills into id from the portfolio. On a miss the state is
// unchanged and ErrLocationNotFound is returned.
func (h *Holder) SelectLocation(id string) error {
	return h.selectFrom(id, OriginPortfolio)
}

// ViewFromOverview drills into id from the locations overview list. A selection
// made from the portfolio is never replaced this way.
func (h *Holder) ViewFromOverview(id string) error {
	return h.selectFrom(id, OriginLocations)
}

func (h *Holder) selectFrom(id string, origin Origin) error {
	summary, ok := h.lookup.Lookup(id)
	if !ok {
		h.mu.Lock()
		page := h.state.ActivePage
		h.mu.Unlock()
		h.emit(Event{Kind: EventLookupMiss, Page: page, LocationID: id, Origin: origin})
		return fmt.Errorf("select %q: %w", id, ErrLocationNotFound)
	}
	detail := DetailFromSummary(summary)

	h.mu.Lock()
	if origin == OriginLocations && EffectiveSelection(h.state.external(), &detail) != &detail {
		page := h.state.ActivePage
		h.mu.Unlock()
		h.emit(Event{Kind: EventSelectionOverridden, Page: page, LocationID: id, Origin: origin})
		return fmt.Errorf("view %q: %w", id, ErrSelectionOverridden)
	}
	h.state.Selected = &detail
	h.state.Origin = origin
	h.state.ActivePage = PageLocations
	h.mu.Unlock()
	h.emit(Event{Kind: EventLocationSelected, Page: PageLocations, LocationID: id, Origin: origin})
	return nil
}

// ClearSelection exits the drill-down and returns to the portfolio.
func (h *Holder) ClearSelection() {
	h.mu.Lock()
	h.state.Selected = nil
	h.state.Origin = OriginNone
	h.state.ActivePage = PagePortfolio
	h.mu.Unlock()
	h.emit(Event{Kind: EventSelectionCleared, Page: PagePortfolio})
}

// ClearSelectionKeepPage exits the drill-down without changing the page.
func (h *Holder) ClearSelectionKeepPage() {
	h.mu.Lock()
	h.state.Selected = nil
	h.state.Origin = OriginNone
	page := h.state.ActivePage
	h.mu.Unlock()
	h.emit(Event{Kind: EventSelectionCleared, Page: page})
}

// Back applies the back action of the current panel and reports which one ran.
func (h *Holder) Back() BackAction {
	h.mu.Lock()
	action := Resolve(h.state).Back
	switch action {
	case BackToPortfolio:
		h.state.ActivePage = PagePortfolio
	case BackToLocationsOverview:
	default:
		h.mu.Unlock()
		return BackNone
	}
	h.state.Selected = nil
	h.state.Origin = OriginNone
	page := h.state.ActivePage
	h.mu.Unlock()
	h.emit(Event{Kind: EventSelectionCleared, Page: page})
	return action
}

// UpdateChrome applies a chrome action; page and selection are untouched.
func (h *Holder) UpdateChrome(action, arg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := ApplyChromeAction(h.state.Chrome, action, arg)
	if err != nil {
		return err
	}
	h.state.Chrome = next
	return nil
}

// SetDateRange records the header's date range preset name.
func (h *Holder) SetDateRange(name string) {
	h.mu.Lock()
	h.state.Chrome.DateRange = name
	h.mu.Unlock()
}

// Reset returns the holder to its initial state.
func (h *Holder) Reset() {
	h.mu.Lock()
	h.state = h.initial.Clone()
	h.mu.Unlock()
	h.emit(Event{Kind: EventReset, Page: PagePortfolio})
}

func (h *Holder) emit(ev Event) {
	if h.observer != nil {
		h.observer.Observe(ev)
	}
}
