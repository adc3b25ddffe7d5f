// Package memory implements the memory consistency and temporal reasoning
// engine: concept clustering, episodic timeline assembly, and periodic
// health monitoring over a stream of memory fragments.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FragmentType classifies a memory fragment.
type FragmentType string

const (
	FragmentEpisodic  FragmentType = "episodic"
	FragmentSemantic  FragmentType = "semantic"
	FragmentEmotional FragmentType = "emotional"
)

// Content is the polymorphic payload of a fragment: either a structured map
// or free text. Exactly one form is populated.
type Content struct {
	Structured map[string]any
	Text       string
}

// IsStructured reports whether the structured form is populated.
func (c Content) IsStructured() bool { return c.Structured != nil }

// SearchText flattens the content into a single lowercase string used by
// keyword extraction and lexical contradiction checks.
func (c Content) SearchText() string {
	if !c.IsStructured() {
		return strings.ToLower(c.Text)
	}
	keys := make([]string, 0, len(c.Structured))
	for k := range c.Structured {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%v", c.Structured[k])
	}
	return strings.ToLower(b.String())
}

// MarshalJSON emits the structured map when present, otherwise the text as a
// JSON string.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.Structured)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON object (structured) or a string (text).
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		m := make(map[string]any)
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		c.Structured = m
		c.Text = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("content must be an object or a string: %w", err)
	}
	c.Structured = nil
	c.Text = s
	return nil
}

// Fragment is a discrete recorded unit of memory. It is produced by the
// ingestion pipeline and is read-only inside this engine.
type Fragment struct {
	ID               string       `json:"id"`
	Content          Content      `json:"content"`
	Tags             []string     `json:"tags"`
	Confidence       float64      `json:"confidence"`
	CreatedAt        time.Time    `json:"created_at"`
	Type             FragmentType `json:"type"`
	NarrativeRole    string       `json:"narrative_role,omitempty"`
	AssociativeLinks []string     `json:"associative_links,omitempty"`
}

// themeLabel derives a default narrative theme for a fragment: its narrative
// role when set, otherwise a label derived from its type.
func (f Fragment) themeLabel() string {
	if f.NarrativeRole != "" {
		return f.NarrativeRole
	}
	switch f.Type {
	case FragmentEpisodic:
		return "experience"
	case FragmentSemantic:
		return "knowledge"
	case FragmentEmotional:
		return "emotional"
	default:
		return "general"
	}
}

// hasRichContent reports whether the fragment carries enough content to seed
// an episodic chain on its own.
func (f Fragment) hasRichContent(cfg Config) bool {
	if f.Content.IsStructured() {
		return len(f.Content.Structured) > cfg.RichStructuredKeys
	}
	return len(f.Content.Text) > cfg.RichTextLength
}
