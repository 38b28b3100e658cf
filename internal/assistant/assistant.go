// Package assistant answers free-text questions about the portfolio with
// ordered keyword rules over a small knowledge base.
package assistant

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"callpulse/formatting"
	"callpulse/internal/dataset"
)

//go:embed knowledge.yaml
var knowledgeYAML []byte

var ErrEmptyQuery = errors.New("empty query")

type CallReason struct {
	Topic      string `yaml:"topic"`
	Count      int    `yaml:"count"`
	Percentage string `yaml:"percentage"`
}

type Caller struct {
	Name   string `yaml:"name"`
	Reason string `yaml:"reason"`
	Calls  int    `yaml:"calls"`
}

type ruleSpec struct {
	Name     string   `yaml:"name"`
	All      []string `yaml:"all"`
	Any      []string `yaml:"any"`
	Response string   `yaml:"response"`
}

type knowledgeFile struct {
	Greeting    string       `yaml:"greeting"`
	Suggested   []string     `yaml:"suggested"`
	History     []string     `yaml:"history"`
	CallReasons []CallReason `yaml:"call_reasons"`
	Callers     []Caller     `yaml:"callers"`
	Rules       []ruleSpec   `yaml:"rules"`
	Fallback    string       `yaml:"fallback"`
}

type rule struct {
	name string
	all  []string
	any  []string
	tmpl *template.Template
}

func (r rule) matches(q string) bool {
	for _, term := range r.all {
		if !strings.Contains(q, term) {
			return false
		}
	}
	if len(r.any) == 0 {
		return len(r.all) > 0
	}
	for _, term := range r.any {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

// Assistant holds the compiled rules. It is immutable and safe to share.
type Assistant struct {
	greeting  string
	suggested []string
	history   []string
	rules     []rule
	fallback  *template.Template
	data      Knowledge
}

// Knowledge is the template data every response renders against.
type Knowledge struct {
	CallReasons []CallReason
	Callers     []Caller
	Locations   []dataset.OverviewRow
	Query       string
}

var funcs = template.FuncMap{
	"short": formatting.ShortLocationName,
}

// New compiles the embedded knowledge base against the overview rows.
func New(overview []dataset.OverviewRow) (*Assistant, error) {
	var kf knowledgeFile
	if err := yaml.Unmarshal(knowledgeYAML, &kf); err != nil {
		return nil, fmt.Errorf("parse knowledge: %w", err)
	}
	a := &Assistant{
		greeting:  kf.Greeting,
		suggested: kf.Suggested,
		history:   kf.History,
		data: Knowledge{
			CallReasons: kf.CallReasons,
			Callers:     kf.Callers,
			Locations:   append([]dataset.OverviewRow(nil), overview...),
		},
	}
	for _, spec := range kf.Rules {
		tmpl, err := template.New(spec.Name).Funcs(funcs).Parse(spec.Response)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
		a.rules = append(a.rules, rule{name: spec.Name, all: spec.All, any: spec.Any, tmpl: tmpl})
	}
	fb, err := template.New("fallback").Funcs(funcs).Parse(kf.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	a.fallback = fb
	return a, nil
}

// Greeting is the first assistant message of every conversation.
func (a *Assistant) Greeting() string { return a.greeting }

// Suggested returns the starter questions.
func (a *Assistant) Suggested() []string { return append([]string(nil), a.suggested...) }

// History returns the canned question history.
func (a *Assistant) History() []string { return append([]string(nil), a.history...) }

// Answer returns the response to query and the name of the rule that produced
// it ("fallback" when none matched).
func (a *Assistant) Answer(query string) (string, string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", "", ErrEmptyQuery
	}
	data := a.data
	data.Query = q
	normalized := strings.ToLower(q)
	for _, r := range a.rules {
		if r.matches(normalized) {
			out, err := render(r.tmpl, data)
			return out, r.name, err
		}
	}
	out, err := render(a.fallback, data)
	return out, "fallback", err
}

func render(t *template.Template, data Knowledge) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// TopReason is the call reason with the highest count.
func (k Knowledge) TopReason() string {
	best := CallReason{Count: -1}
	for _, r := range k.CallReasons {
		if r.Count > best.Count {
			best = r
		}
	}
	return best.Topic
}

// Location returns the overview row for id, or nil.
func (k Knowledge) Location(id string) *dataset.OverviewRow {
	for i := range k.Locations {
		if k.Locations[i].ID == id {
			return &k.Locations[i]
		}
	}
	return nil
}

// Busiest returns the location with the most calls, or nil.
func (k Knowledge) Busiest() *dataset.OverviewRow {
	rows := k.TopLocations(1)
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

// TopLocations returns up to n locations by call volume.
func (k Knowledge) TopLocations(n int) []dataset.OverviewRow {
	rows := append([]dataset.OverviewRow(nil), k.Locations...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalCalls > rows[j].TotalCalls })
	if n < len(rows) {
		rows = rows[:n]
	}
	return rows
}

// WithMissedCalls lists locations that missed at least one call, most first.
func (k Knowledge) WithMissedCalls() []dataset.OverviewRow {
	var rows []dataset.OverviewRow
	for _, r := range k.Locations {
		if r.MissedCalls > 0 {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MissedCalls > rows[j].MissedCalls })
	return rows
}

// RepeatCallers lists callers with more than two calls.
func (k Knowledge) RepeatCallers() []Caller {
	var out []Caller
	for _, c := range k.Callers {
		if c.Calls > 2 {
			out = append(out, c)
		}
	}
	return out
}

// MessageKind tags a conversation entry.
type MessageKind string

const (
	MessageUser        MessageKind = "user"
	MessageAssistant   MessageKind = "assistant"
	MessageSuggestions MessageKind = "suggestions"
	MessageHistory     MessageKind = "history"
)

type Message struct {
	Kind    MessageKind `json:"kind"`
	Content string      `json:"content"`
	Options []string    `json:"options,omitempty"`
}

// Conversation is one session's chat with the assistant.
type Conversation struct {
	mu          sync.Mutex
	a           *Assistant
	messages    []Message
	available   []string
	showHistory bool
}

// NewConversation starts a conversation with the greeting and the suggestions.
func (a *Assistant) NewConversation() *Conversation {
	c := &Conversation{a: a, available: a.Suggested()}
	c.messages = []Message{
		{Kind: MessageAssistant, Content: a.greeting},
		c.suggestionsLocked(),
	}
	return c
}

func (c *Conversation) suggestionsLocked() Message {
	opts := c.available
	if len(opts) == 0 {
		opts = c.a.suggested
	}
	return Message{Kind: MessageSuggestions, Content: "Try asking:", Options: append([]string(nil), opts...)}
}

func (c *Conversation) withoutLocked(kinds ...MessageKind) []Message {
	out := c.messages[:0:0]
	for _, m := range c.messages {
		drop := false
		for _, k := range kinds {
			if m.Kind == k {
				drop = true
			}
		}
		if !drop {
			out = append(out, m)
		}
	}
	return out
}

// Ask appends the question and its answer. An asked suggestion is removed from
// the remaining suggestions; once none remain the full list is offered again.
func (c *Conversation) Ask(query string) (string, error) {
	answer, _, err := c.a.Answer(query)
	if err != nil {
		return "", err
	}
	q := strings.TrimSpace(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.available[:0:0]
	for _, s := range c.available {
		if s != q {
			remaining = append(remaining, s)
		}
	}
	c.available = remaining
	c.messages = append(c.withoutLocked(MessageSuggestions, MessageHistory),
		Message{Kind: MessageUser, Content: q},
		Message{Kind: MessageAssistant, Content: answer},
		c.suggestionsLocked(),
	)
	c.showHistory = false
	return answer, nil
}

// ToggleHistory swaps the suggestions block for the question history and back.
func (c *Conversation) ToggleHistory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.showHistory {
		c.messages = append(c.withoutLocked(MessageHistory), c.suggestionsLocked())
		c.showHistory = false
		return false
	}
	c.messages = append(c.withoutLocked(MessageSuggestions),
		Message{Kind: MessageHistory, Content: "From your history:", Options: c.a.History()})
	c.showHistory = true
	return true
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Remaining returns the suggestions not yet asked.
func (c *Conversation) Remaining() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.available...)
}
