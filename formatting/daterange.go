package formatting

import (
	"fmt"
	"time"
)

// DateRange is a closed day range shown in the header.
type DateRange struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type preset struct {
	name string
	days int
}

var presets = []preset{
	{"Today", 0},
	{"Yesterday", 1},
	{"Last 7 Days", 7},
	{"Last 30 Days", 30},
	{"Last 90 Days", 90},
}

// DefaultDateRange is the preset a new session starts with.
const DefaultDateRange = "Yesterday"

// DateRangePresets lists the preset names in display order.
func DateRangePresets() []string {
	out := make([]string, len(presets))
	for i, p := range presets {
		out[i] = p.name
	}
	return out
}

// ResolveDateRange turns a preset name into dates relative to now. Yesterday
// spans from yesterday through today, the other presets end today.
func ResolveDateRange(name string, now time.Time) (DateRange, error) {
	for _, p := range presets {
		if p.name != name {
			continue
		}
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return DateRange{Name: p.name, Start: end.AddDate(0, 0, -p.days), End: end}, nil
	}
	return DateRange{}, fmt.Errorf("unknown date range %q", name)
}

// Label renders the range as "Mar 1 - Mar 8, 2026".
func (r DateRange) Label() string {
	if r.Start.Equal(r.End) {
		return r.End.Format("Jan 2, 2006")
	}
	if r.Start.Year() != r.End.Year() {
		return r.Start.Format("Jan 2, 2006") + " - " + r.End.Format("Jan 2, 2006")
	}
	return r.Start.Format("Jan 2") + " - " + r.End.Format("Jan 2, 2006")
}
