package dataset

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"callpulse/formatting"
	"callpulse/internal/registry"
)

//go:embed seed.yaml
var seedYAML []byte

// Category groups calls flagged for review.
type Category string

const (
	CategoryMissedCall         Category = "missed_call"
	CategoryLowScriptAdherence Category = "low_script_adherence"
	CategoryCritical           Category = "critical"
	CategoryLowSentiment       Category = "low_sentiment"
	CategoryMissedOpportunity  Category = "missed_opportunity"
)

// ReviewCategories are the four tables shown on a location detail panel, in order.
var ReviewCategories = []Category{
	CategoryLowScriptAdherence,
	CategoryCritical,
	CategoryLowSentiment,
	CategoryMissedOpportunity,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMissedCall, CategoryLowScriptAdherence, CategoryCritical, CategoryLowSentiment, CategoryMissedOpportunity:
		return true
	}
	return false
}

// Title is the table heading for the category.
func (c Category) Title() string {
	switch c {
	case CategoryMissedCall:
		return "Missed Calls"
	case CategoryLowScriptAdherence:
		return "Calls with Low Script Adherence"
	case CategoryCritical:
		return "Critical Calls"
	case CategoryLowSentiment:
		return "Calls with Low Sentiment"
	case CategoryMissedOpportunity:
		return "Missed Opportunities"
	}
	return string(c)
}

// MetricLabel names the category-specific column.
func (c Category) MetricLabel() string {
	switch c {
	case CategoryLowScriptAdherence:
		return "Script Adherence"
	case CategoryCritical:
		return "Issue"
	case CategoryLowSentiment:
		return "Call Sentiment"
	case CategoryMissedOpportunity:
		return "Opportunity"
	}
	return "Status"
}

// OpensCoaching reports whether the call's view action opens the script coach
// instead of the plain transcript.
func (c Category) OpensCoaching() bool { return c == CategoryLowScriptAdherence }

type KPI struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Trend string `json:"trend" yaml:"trend"`
}

type Topic struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Mentions    int    `json:"mentions" yaml:"mentions"`
	Trend       string `json:"trend" yaml:"trend"`
}

type Topics struct {
	YouShould []Topic `json:"you_should" yaml:"you_should"`
	Negative  []Topic `json:"negative" yaml:"negative"`
	Positive  []Topic `json:"positive" yaml:"positive"`
}

// TopicOrder selects how topic cards are sorted.
type TopicOrder string

const (
	TopicsByMentions TopicOrder = "mentions"
	TopicsByTitle    TopicOrder = "alphabetical"
	TopicsByTrend    TopicOrder = "trend"
)

// SortTopics returns a sorted copy of topics. Unknown orders keep input order.
func SortTopics(topics []Topic, order TopicOrder) []Topic {
	out := append([]Topic(nil), topics...)
	switch order {
	case TopicsByMentions:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Mentions > out[j].Mentions })
	case TopicsByTitle:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	case TopicsByTrend:
		sort.SliceStable(out, func(i, j int) bool {
			return formatting.TrendValue(out[i].Trend) > formatting.TrendValue(out[j].Trend)
		})
	}
	return out
}

// Sorted applies order to all three lists.
func (t Topics) Sorted(order TopicOrder) Topics {
	return Topics{
		YouShould: SortTopics(t.YouShould, order),
		Negative:  SortTopics(t.Negative, order),
		Positive:  SortTopics(t.Positive, order),
	}
}

// Empty reports whether no topic list has entries.
func (t Topics) Empty() bool {
	return len(t.YouShould) == 0 && len(t.Negative) == 0 && len(t.Positive) == 0
}

// Detail is the review content of one location beyond its registry counters.
type Detail struct {
	KPIs   []KPI  `json:"kpis" yaml:"kpis"`
	Topics Topics `json:"topics" yaml:"topics"`
}

// OverviewRow is one line of the locations overview table.
type OverviewRow struct {
	ID                   string `json:"id" yaml:"id"`
	Location             string `json:"location" yaml:"location"`
	GoogleRating         string `json:"google_rating" yaml:"google_rating"`
	TotalCalls           int    `json:"total_calls" yaml:"total_calls"`
	SpamCalls            int    `json:"spam_calls" yaml:"spam_calls"`
	AnsweredCalls        int    `json:"answered_calls" yaml:"answered_calls"`
	MissedCalls          int    `json:"missed_calls" yaml:"missed_calls"`
	AverageCallQuality   string `json:"average_call_quality" yaml:"average_call_quality"`
	AverageCallSentiment string `json:"average_call_sentiment" yaml:"average_call_sentiment"`
	HasProblems          bool   `json:"has_problems" yaml:"has_problems"`
}

type PortfolioEntry struct {
	LocationID string `json:"location_id" yaml:"location_id"`
	Location   string `json:"location" yaml:"location"`
	Metric     string `json:"metric" yaml:"metric"`
	CallID     string `json:"call_id" yaml:"call_id"`
}

// PortfolioList is one highlight table on the portfolio page.
type PortfolioList struct {
	Key     string           `json:"key" yaml:"key"`
	Title   string           `json:"title" yaml:"title"`
	Entries []PortfolioEntry `json:"entries" yaml:"entries"`
}

// Call is a single reviewed call.
type Call struct {
	ID         string   `json:"id" yaml:"id"`
	LocationID string   `json:"location_id" yaml:"location_id"`
	Category   Category `json:"category" yaml:"category"`
	Name       string   `json:"name" yaml:"name"`
	Phone      string   `json:"phone" yaml:"phone"`
	Metric     string   `json:"metric" yaml:"metric"`
	Summary    string   `json:"summary" yaml:"summary"`
	Reason     string   `json:"reason" yaml:"reason"`
}

type TranscriptLine struct {
	Time    string `json:"time" yaml:"time"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

type CoachingSection struct {
	Section   string `json:"section" yaml:"section"`
	Required  string `json:"required" yaml:"required"`
	Actual    string `json:"actual" yaml:"actual"`
	Adherence string `json:"adherence" yaml:"adherence"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Feedback  string `json:"feedback" yaml:"feedback"`
}

// Coaching is the script adherence breakdown of one call.
type Coaching struct {
	OverallScore     int               `json:"overall_score" yaml:"overall_score"`
	Sections         []CoachingSection `json:"sections" yaml:"sections"`
	ImprovementAreas []string          `json:"improvement_areas" yaml:"improvement_areas"`
}

type NotificationMetric struct {
	Value string `json:"value" yaml:"value"`
	Trend int    `json:"trend" yaml:"trend"`
}

type Notification struct {
	ID          string              `json:"id" yaml:"id"`
	Type        string              `json:"type" yaml:"type"`
	Title       string              `json:"title" yaml:"title"`
	Description string              `json:"description" yaml:"description"`
	Time        string              `json:"time" yaml:"time"`
	Read        bool                `json:"read" yaml:"read"`
	Priority    string              `json:"priority,omitempty" yaml:"priority"`
	Location    string              `json:"location,omitempty" yaml:"location"`
	Metric      *NotificationMetric `json:"metric,omitempty" yaml:"metric"`
}

// Bundle is the on-disk review dataset. The embedded seed fills every field;
// import files usually carry only calls, transcripts, and coaching.
type Bundle struct {
	Locations     []registry.LocationSummary  `json:"locations" yaml:"locations"`
	Overview      []OverviewRow               `json:"overview" yaml:"overview"`
	Details       map[string]Detail           `json:"details" yaml:"details"`
	Portfolio     []PortfolioList             `json:"portfolio" yaml:"portfolio"`
	Calls         []Call                      `json:"calls" yaml:"calls"`
	Transcripts   map[string][]TranscriptLine `json:"transcripts" yaml:"transcripts"`
	Coaching      map[string]Coaching         `json:"coaching" yaml:"coaching"`
	Notifications []Notification              `json:"notifications" yaml:"notifications"`
}

var (
	ErrEmptyBundle = errors.New("bundle has no content")
	ErrInvalidCall = errors.New("invalid call")
	ErrNoLocations = errors.New("dataset has no locations")
)

// Seed returns the embedded dataset.
func Seed() (Bundle, error) {
	return Parse(seedYAML, ".yaml")
}

// Load reads the dataset at path, or the embedded seed when path is empty.
func Load(path string) (Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return Seed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read dataset %s: %w", path, err)
	}
	b, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Bundle{}, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(b.Locations) == 0 {
		return Bundle{}, fmt.Errorf("dataset %s: %w", path, ErrNoLocations)
	}
	return b, nil
}

// Parse decodes a bundle. ext selects JSON for ".json"; anything else is YAML.
func Parse(data []byte, ext string) (Bundle, error) {
	var b Bundle
	if len(strings.TrimSpace(string(data))) == 0 {
		return b, ErrEmptyBundle
	}
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &b)
	} else {
		err = yaml.Unmarshal(data, &b)
	}
	if err != nil {
		return b, err
	}
	b.normalize()
	if err := b.Validate(); err != nil {
		return b, err
	}
	return b, nil
}

// normalize cleans hand-written import files: free-form category labels,
// phone formats, speaker names and transcript whitespace.
func (b *Bundle) normalize() {
	for i := range b.Calls {
		c := &b.Calls[i]
		c.Category = Category(formatting.NormalizeReviewCategory(string(c.Category)))
		c.Phone = formatting.NormalizePhone(c.Phone)
	}
	for id, lines := range b.Transcripts {
		for i := range lines {
			lines[i].Speaker = formatting.NormalizeSpeaker(lines[i].Speaker)
			lines[i].Text = formatting.NormalizeTranscriptText(lines[i].Text)
		}
		b.Transcripts[id] = lines
	}
}

// Validate checks the review records. Registry counters are checked by registry.New.
func (b Bundle) Validate() error {
	if len(b.Locations) == 0 && len(b.Calls) == 0 && len(b.Transcripts) == 0 && len(b.Coaching) == 0 && len(b.Notifications) == 0 {
		return ErrEmptyBundle
	}
	seen := make(map[string]struct{}, len(b.Calls))
	for i, c := range b.Calls {
		switch {
		case strings.TrimSpace(c.ID) == "":
			return fmt.Errorf("call %d: %w: empty id", i, ErrInvalidCall)
		case strings.TrimSpace(c.LocationID) == "":
			return fmt.Errorf("call %s: %w: empty location", c.ID, ErrInvalidCall)
		case !c.Category.Valid():
			return fmt.Errorf("call %s: %w: unknown category %q", c.ID, ErrInvalidCall, c.Category)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("call %s: %w: duplicate id", c.ID, ErrInvalidCall)
		}
		seen[c.ID] = struct{}{}
	}
	for id, c := range b.Coaching {
		if c.OverallScore < 0 || c.OverallScore > 100 {
			return fmt.Errorf("coaching %s: overall score %d out of range", id, c.OverallScore)
		}
	}
	return nil
}

// Registry builds the location registry from the bundle.
func (b Bundle) Registry() (*registry.Registry, error) {
	if len(b.Locations) == 0 {
		return nil, ErrNoLocations
	}
	return registry.New(b.Locations)
}

// MissingDetails lists registry ids that have no detail entry.
func (b Bundle) MissingDetails() []string {
	var missing []string
	for _, loc := range b.Locations {
		if _, ok := b.Details[loc.ID]; !ok {
			missing = append(missing, loc.ID)
		}
	}
	return missing
}

// Detail returns the review content for id. A location without an entry gets
// an empty detail rather than another location's data.
func (b Bundle) Detail(id string) (Detail, bool) {
	d, ok := b.Details[id]
	return d, ok
}
