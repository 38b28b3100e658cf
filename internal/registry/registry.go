package registry

import (
	"errors"
	"fmt"
	"strings"
)

// LocationSummary is one franchise location with its aggregate call counters.
type LocationSummary struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	GoogleRating     string  `json:"google_rating" yaml:"google_rating"`
	AverageCallScore float64 `json:"average_call_score" yaml:"average_call_score"`
	InboundCalls     int     `json:"inbound_calls" yaml:"inbound_calls"`
	MissedCalls      int     `json:"missed_calls" yaml:"missed_calls"`
	SalesCalls       int     `json:"sales_calls" yaml:"sales_calls"`
	ServiceCalls     int     `json:"service_calls" yaml:"service_calls"`
	OtherCalls       int     `json:"other_calls" yaml:"other_calls"`
}

// SubcategoryTotal sums the per-category counters that should not exceed InboundCalls.
func (l LocationSummary) SubcategoryTotal() int {
	return l.MissedCalls + l.SalesCalls + l.ServiceCalls + l.OtherCalls
}

// Consistent reports whether the subcategory counters fit inside the inbound total.
func (l LocationSummary) Consistent() bool {
	return l.SubcategoryTotal() <= l.InboundCalls
}

var (
	ErrEmptyID     = errors.New("location id is empty")
	ErrDuplicateID = errors.New("duplicate location id")
	ErrNegative    = errors.New("negative call counter")
)

// Registry is the read-only, ordered set of known locations.
// It is built once and never mutated, so concurrent readers need no locking.
type Registry struct {
	ordered []LocationSummary
	byID    map[string]int
	skewed  []string
}

// New validates and indexes the given locations, preserving their order.
func New(locations []LocationSummary) (*Registry, error) {
	r := &Registry{
		ordered: make([]LocationSummary, 0, len(locations)),
		byID:    make(map[string]int, len(locations)),
	}
	for i, loc := range locations {
		id := strings.TrimSpace(loc.ID)
		if id == "" {
			return nil, fmt.Errorf("location %d: %w", i, ErrEmptyID)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("location %q: %w", id, ErrDuplicateID)
		}
		if loc.InboundCalls < 0 || loc.MissedCalls < 0 || loc.SalesCalls < 0 || loc.ServiceCalls < 0 || loc.OtherCalls < 0 {
			return nil, fmt.Errorf("location %q: %w", id, ErrNegative)
		}
		loc.ID = id
		r.byID[id] = len(r.ordered)
		r.ordered = append(r.ordered, loc)
		if !loc.Consistent() {
			r.skewed = append(r.skewed, id)
		}
	}
	return r, nil
}

// Lookup returns the location with the given id.
func (r *Registry) Lookup(id string) (LocationSummary, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return LocationSummary{}, false
	}
	return r.ordered[idx], true
}

// All returns a copy of the locations in registry order.
func (r *Registry) All() []LocationSummary {
	return append([]LocationSummary(nil), r.ordered...)
}

// Len is the number of registered locations.
func (r *Registry) Len() int { return len(r.ordered) }

// Inconsistencies lists ids whose subcategory counters exceed the inbound total.
// These are tolerated; callers decide whether to surface them.
func (r *Registry) Inconsistencies() []string {
	return append([]string(nil), r.skewed...)
}

// TotalInbound sums inbound calls across all locations.
func (r *Registry) TotalInbound() int {
	total := 0
	for _, loc := range r.ordered {
		total += loc.InboundCalls
	}
	return total
}
