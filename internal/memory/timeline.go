package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// causalMarkers are the lexical cues that trigger causal link inference.
// Matched as substrings of the flattened lowercase content.
var causalMarkers = []string{"because", "caused", "resulted", "led to", "due to", "therefore"}

// confidenceEpsilon guards threshold comparisons against float drift from
// repeated 0.1 increments.
const confidenceEpsilon = 1e-9

// ChainMember is one fragment of an episodic chain, with its creation time.
type ChainMember struct {
	FragmentID string    `json:"fragment_id"`
	At         time.Time `json:"at"`
}

// EpisodicChain is a time-ordered run of linked episodic fragments. SpanEnd
// always equals the last member's creation time.
type EpisodicChain struct {
	ID           string        `json:"id"`
	Members      []ChainMember `json:"members"`
	NarrativeArc string        `json:"narrative_arc"`
	SpanStart    time.Time     `json:"span_start"`
	SpanEnd      time.Time     `json:"span_end"`
	CausalCount  int           `json:"causal_count"`
	Significance float64       `json:"significance"`
}

// CausalLink is an inferred cause-effect relationship between two fragments.
// Append-only.
type CausalLink struct {
	CauseID       string        `json:"cause_id"`
	EffectID      string        `json:"effect_id"`
	Relationship  string        `json:"relationship"`
	Confidence    float64       `json:"confidence"`
	TemporalDelay time.Duration `json:"temporal_delay"`
	DetectedAt    time.Time     `json:"detected_at"`
}

// CausalNetwork is the one-hop neighborhood of a fragment in the causal
// link log.
type CausalNetwork struct {
	FragmentID string       `json:"fragment_id"`
	Causes     []CausalLink `json:"causes"`
	Effects    []CausalLink `json:"effects"`
}

// TemporalPattern is a recurring time-of-day regularity. Confidence is
// monotonically reinforced by repeated occurrences.
type TemporalPattern struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	FragmentIDs    []string  `json:"fragment_ids"`
	Signature      string    `json:"signature"`
	Confidence     float64   `json:"confidence"`
	LastOccurrence time.Time `json:"last_occurrence"`
}

// Arc resolution states.
const (
	ArcOngoing   = "ongoing"
	ArcResolved  = "resolved"
	ArcAbandoned = "abandoned"
)

// NarrativeArc is a longer thematic thread with one emotional-trajectory
// value per fragment.
type NarrativeArc struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	FragmentIDs         []string  `json:"fragment_ids"`
	KeyMoments          []string  `json:"key_moments"`
	Themes              []string  `json:"themes"`
	EmotionalTrajectory []float64 `json:"emotional_trajectory"`
	ResolutionStatus    string    `json:"resolution_status"`
	Significance        float64   `json:"significance"`
	CreatedAt           time.Time `json:"created_at"`
}

// Timeline owns episodic chains, causal links, temporal patterns, and
// narrative arcs. Like the cluster manager, all state is in memory with
// write-through persistence and rollback on failure.
type Timeline struct {
	db  *sql.DB
	cfg Config

	mu       sync.Mutex
	chains   map[string]*EpisodicChain
	patterns map[string]*TemporalPattern
	arcs     map[string]*NarrativeArc
	arcOrder []string // arc ids in creation order; attachment prefers the oldest matching arc
	links    []CausalLink

	lastFragID string
	lastFragAt time.Time
	hasLast    bool
}

// NewTimeline creates an episodic timeline over the given database handle.
func NewTimeline(db *sql.DB, cfg Config) *Timeline {
	return &Timeline{
		db:       db,
		cfg:      cfg,
		chains:   make(map[string]*EpisodicChain),
		patterns: make(map[string]*TemporalPattern),
		arcs:     make(map[string]*NarrativeArc),
	}
}

// Load restores persisted chains, patterns, arcs, and causal links. Corrupt
// records are excluded and logged. The most-recent-fragment pointer used for
// causal attribution is not restored; it resumes with the next fragment.
func (tl *Timeline) Load(ctx context.Context) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	rows, err := tl.db.QueryContext(ctx, `
		SELECT id, members, narrative_arc, span_start, span_end, causal_count, significance
		FROM episodic_chains
	`)
	if err != nil {
		return fmt.Errorf("load chains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c EpisodicChain
		var members, spanStart, spanEnd string
		if err := rows.Scan(&c.ID, &members, &c.NarrativeArc, &spanStart, &spanEnd, &c.CausalCount, &c.Significance); err != nil {
			return fmt.Errorf("scan chain: %w", err)
		}
		json.Unmarshal([]byte(members), &c.Members)
		c.SpanStart = parseTime(spanStart)
		c.SpanEnd = parseTime(spanEnd)

		if verr := validateChain(&c); verr != nil {
			log.Warn().Err(verr).Str("chain_id", c.ID).Msg("excluding corrupt chain record")
			continue
		}
		tl.chains[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chains: %w", err)
	}

	patRows, err := tl.db.QueryContext(ctx, `
		SELECT id, pattern_type, fragment_ids, signature, confidence, last_occurrence
		FROM temporal_patterns
	`)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	defer patRows.Close()

	for patRows.Next() {
		var p TemporalPattern
		var ids, lastOcc string
		if err := patRows.Scan(&p.ID, &p.Type, &ids, &p.Signature, &p.Confidence, &lastOcc); err != nil {
			return fmt.Errorf("scan pattern: %w", err)
		}
		json.Unmarshal([]byte(ids), &p.FragmentIDs)
		p.LastOccurrence = parseTime(lastOcc)

		if p.Confidence < 0 || p.Confidence > 1 {
			verr := &DataIntegrityError{Record: "temporal_pattern", ID: p.ID,
				Reason: fmt.Sprintf("confidence %v out of range", p.Confidence)}
			log.Warn().Err(verr).Str("pattern_id", p.ID).Msg("excluding corrupt pattern record")
			continue
		}
		tl.patterns[p.ID] = &p
	}
	if err := patRows.Err(); err != nil {
		return fmt.Errorf("iterate patterns: %w", err)
	}

	arcRows, err := tl.db.QueryContext(ctx, `
		SELECT id, title, fragment_ids, key_moments, themes, emotional_trajectory,
		       resolution_status, significance, created_at
		FROM narrative_arcs
	`)
	if err != nil {
		return fmt.Errorf("load arcs: %w", err)
	}
	defer arcRows.Close()

	for arcRows.Next() {
		var a NarrativeArc
		var ids, moments, themes, trajectory, createdAt string
		if err := arcRows.Scan(&a.ID, &a.Title, &ids, &moments, &themes, &trajectory,
			&a.ResolutionStatus, &a.Significance, &createdAt); err != nil {
			return fmt.Errorf("scan arc: %w", err)
		}
		json.Unmarshal([]byte(ids), &a.FragmentIDs)
		json.Unmarshal([]byte(moments), &a.KeyMoments)
		json.Unmarshal([]byte(themes), &a.Themes)
		json.Unmarshal([]byte(trajectory), &a.EmotionalTrajectory)
		a.CreatedAt = parseTime(createdAt)

		if len(a.EmotionalTrajectory) != len(a.FragmentIDs) {
			verr := &DataIntegrityError{Record: "narrative_arc", ID: a.ID,
				Reason: "trajectory length does not match fragment count"}
			log.Warn().Err(verr).Str("arc_id", a.ID).Msg("excluding corrupt arc record")
			continue
		}
		tl.arcs[a.ID] = &a
	}
	if err := arcRows.Err(); err != nil {
		return fmt.Errorf("iterate arcs: %w", err)
	}

	tl.arcOrder = tl.arcOrder[:0]
	for id := range tl.arcs {
		tl.arcOrder = append(tl.arcOrder, id)
	}
	sort.Slice(tl.arcOrder, func(i, j int) bool {
		a, b := tl.arcs[tl.arcOrder[i]], tl.arcs[tl.arcOrder[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	linkRows, err := tl.db.QueryContext(ctx, `
		SELECT cause_id, effect_id, relationship, confidence, temporal_delay_sec, detected_at
		FROM causal_links ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("load causal links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var l CausalLink
		var delaySec int64
		var detectedAt string
		if err := linkRows.Scan(&l.CauseID, &l.EffectID, &l.Relationship, &l.Confidence, &delaySec, &detectedAt); err != nil {
			return fmt.Errorf("scan causal link: %w", err)
		}
		l.TemporalDelay = time.Duration(delaySec) * time.Second
		l.DetectedAt = parseTime(detectedAt)
		tl.links = append(tl.links, l)
	}
	if err := linkRows.Err(); err != nil {
		return fmt.Errorf("iterate causal links: %w", err)
	}

	log.Info().
		Int("chains", len(tl.chains)).
		Int("patterns", len(tl.patterns)).
		Int("arcs", len(tl.arcs)).
		Int("causal_links", len(tl.links)).
		Msg("timeline loaded")
	return nil
}

func validateChain(c *EpisodicChain) error {
	if len(c.Members) == 0 {
		return &DataIntegrityError{Record: "episodic_chain", ID: c.ID, Reason: "no members"}
	}
	if c.SpanEnd.Before(c.SpanStart) {
		return &DataIntegrityError{Record: "episodic_chain", ID: c.ID, Reason: "span end before start"}
	}
	prev := c.Members[0].At
	for _, m := range c.Members[1:] {
		if m.At.Before(prev) {
			return &DataIntegrityError{Record: "episodic_chain", ID: c.ID, Reason: "members out of order"}
		}
		prev = m.At
	}
	if !c.SpanEnd.Equal(c.Members[len(c.Members)-1].At) {
		return &DataIntegrityError{Record: "episodic_chain", ID: c.ID, Reason: "span end does not match last member"}
	}
	return nil
}

// ProcessNewFragment folds an episodic fragment into the timeline: chain
// assignment, causal link inference, temporal pattern reinforcement, and
// narrative arc maintenance. Non-episodic fragments are a no-op.
func (tl *Timeline) ProcessNewFragment(ctx context.Context, frag Fragment) error {
	if frag.Type != FragmentEpisodic {
		return nil
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	text := frag.Content.SearchText()

	chain := tl.assignChain(frag)
	newLinks := tl.inferCausalLinks(frag, text, chain)
	pattern := tl.reinforcePattern(frag)
	arc, arcCreated := tl.maintainArcs(frag)

	if err := tl.persistFragmentChanges(ctx, chain, pattern, arc, newLinks); err != nil {
		return &PersistenceError{Op: "timeline update", Err: err}
	}

	if chain != nil {
		tl.chains[chain.ID] = chain
	}
	if pattern != nil {
		tl.patterns[pattern.ID] = pattern
	}
	if arc != nil {
		tl.arcs[arc.ID] = arc
		if arcCreated {
			tl.arcOrder = append(tl.arcOrder, arc.ID)
		}
	}
	tl.links = append(tl.links, newLinks...)
	tl.lastFragID = frag.ID
	tl.lastFragAt = frag.CreatedAt
	tl.hasLast = true

	log.Debug().
		Str("fragment_id", frag.ID).
		Bool("chained", chain != nil).
		Int("causal_links", len(newLinks)).
		Msg("fragment folded into timeline")
	return nil
}

// assignChain returns the staged chain the fragment lands in (a clone of an
// extended chain or a new single-fragment chain), or nil when the fragment
// stays unchained.
func (tl *Timeline) assignChain(frag Fragment) *EpisodicChain {
	var bestID string
	var bestScore float64
	var bestEnd time.Time

	for _, id := range tl.sortedChainIDs() {
		c := tl.chains[id]
		gap := frag.CreatedAt.Sub(c.SpanEnd)
		if gap < 0 || gap > tl.cfg.ChainGap {
			continue
		}
		score := 0.5
		if frag.NarrativeRole != "" {
			score += 0.2
		}
		score += 0.3 * (1 - gap.Seconds()/tl.cfg.ChainGap.Seconds())

		switch {
		case score > bestScore,
			score == bestScore && c.SpanEnd.After(bestEnd),
			score == bestScore && c.SpanEnd.Equal(bestEnd) && (bestID == "" || id < bestID):
			bestID, bestScore, bestEnd = id, score, c.SpanEnd
		}
	}

	if bestID != "" && bestScore > tl.cfg.ChainScoreFloor {
		c := cloneChain(tl.chains[bestID])
		c.Members = append(c.Members, ChainMember{FragmentID: frag.ID, At: frag.CreatedAt})
		c.SpanEnd = frag.CreatedAt
		c.Significance = chainSignificance(c)
		return c
	}

	if !tl.hasEpisodicPotential(frag) {
		return nil
	}
	c := &EpisodicChain{
		ID:           "chain_" + frag.ID,
		Members:      []ChainMember{{FragmentID: frag.ID, At: frag.CreatedAt}},
		NarrativeArc: frag.themeLabel(),
		SpanStart:    frag.CreatedAt,
		SpanEnd:      frag.CreatedAt,
	}
	c.Significance = chainSignificance(c)
	return c
}

// hasEpisodicPotential reports whether the fragment can seed a chain of its
// own: minimum confidence plus either a narrative role or rich content.
func (tl *Timeline) hasEpisodicPotential(frag Fragment) bool {
	if frag.Confidence < tl.cfg.EpisodicConfidenceFloor {
		return false
	}
	return frag.NarrativeRole != "" || frag.hasRichContent(tl.cfg)
}

// inferCausalLinks emits a link from the most recent prior fragment when the
// content carries a causal marker. Linking the most recent fragment rather
// than searching backward for a plausible antecedent is a deliberate carry of
// the placeholder behavior, bounded here by the causal window.
func (tl *Timeline) inferCausalLinks(frag Fragment, text string, chain *EpisodicChain) []CausalLink {
	if !tl.hasLast {
		return nil
	}
	marked := false
	for _, m := range causalMarkers {
		if strings.Contains(text, m) {
			marked = true
			break
		}
	}
	if !marked {
		return nil
	}
	gap := frag.CreatedAt.Sub(tl.lastFragAt)
	if gap < 0 || gap > tl.cfg.CausalWindow {
		return nil
	}

	link := CausalLink{
		CauseID:       tl.lastFragID,
		EffectID:      frag.ID,
		Relationship:  "inferred",
		Confidence:    tl.cfg.CausalConfidence,
		TemporalDelay: tl.cfg.CausalDelay,
		DetectedAt:    frag.CreatedAt,
	}

	if chain != nil && chainContains(chain, link.CauseID) && chainContains(chain, link.EffectID) {
		chain.CausalCount++
		chain.Significance = chainSignificance(chain)
	}
	return []CausalLink{link}
}

// reinforcePattern buckets the fragment by hour of day (UTC) and reinforces
// the matching daily pattern.
func (tl *Timeline) reinforcePattern(frag Fragment) *TemporalPattern {
	hour := frag.CreatedAt.UTC().Hour()
	id := fmt.Sprintf("daily_%d", hour)

	if existing, ok := tl.patterns[id]; ok {
		p := clonePattern(existing)
		p.Confidence = math.Min(p.Confidence+tl.cfg.PatternStep, 1.0)
		p.FragmentIDs = append(p.FragmentIDs, frag.ID)
		p.LastOccurrence = frag.CreatedAt
		return p
	}
	return &TemporalPattern{
		ID:             id,
		Type:           "daily",
		FragmentIDs:    []string{frag.ID},
		Signature:      fmt.Sprintf("hour=%d", hour),
		Confidence:     tl.cfg.PatternStep,
		LastOccurrence: frag.CreatedAt,
	}
}

// maintainArcs attaches the fragment to the first existing arc whose themes
// intersect its tags, or starts a new arc when the fragment has narrative
// potential. Returns the staged arc and whether it is new.
func (tl *Timeline) maintainArcs(frag Fragment) (*NarrativeArc, bool) {
	tags := lowerSet(frag.Tags)

	for _, id := range tl.arcOrder {
		existing := tl.arcs[id]
		if !intersects(existing.Themes, tags) {
			continue
		}
		a := cloneArc(existing)
		a.FragmentIDs = append(a.FragmentIDs, frag.ID)
		// Fragment confidence stands in for emotional valence.
		a.EmotionalTrajectory = append(a.EmotionalTrajectory, frag.Confidence)
		a.Themes = unionSorted(a.Themes, tags)
		if frag.Confidence >= tl.cfg.KeyMomentConfidence {
			a.KeyMoments = append(a.KeyMoments, frag.ID)
		}
		a.Significance = arcSignificance(a)
		return a, false
	}

	if frag.Confidence <= tl.cfg.NarrativeConfidenceFloor ||
		len(tags) <= tl.cfg.NarrativeMinTags ||
		frag.Type != FragmentEpisodic {
		return nil, false
	}

	title := frag.NarrativeRole
	if title == "" {
		title = tags[0]
	}
	a := &NarrativeArc{
		ID:                  "arc_" + frag.ID,
		Title:               title,
		FragmentIDs:         []string{frag.ID},
		Themes:              tags,
		EmotionalTrajectory: []float64{frag.Confidence},
		ResolutionStatus:    ArcOngoing,
		CreatedAt:           frag.CreatedAt,
	}
	if frag.Confidence >= tl.cfg.KeyMomentConfidence {
		a.KeyMoments = []string{frag.ID}
	}
	a.Significance = arcSignificance(a)
	return a, true
}

func (tl *Timeline) persistFragmentChanges(ctx context.Context, chain *EpisodicChain,
	pattern *TemporalPattern, arc *NarrativeArc, links []CausalLink) error {

	tx, err := tl.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if chain != nil {
		members, _ := json.Marshal(chain.Members)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO episodic_chains (id, members, narrative_arc, span_start, span_end, causal_count, significance)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				members = excluded.members,
				span_end = excluded.span_end,
				causal_count = excluded.causal_count,
				significance = excluded.significance
		`, chain.ID, string(members), chain.NarrativeArc,
			formatTime(chain.SpanStart), formatTime(chain.SpanEnd), chain.CausalCount, chain.Significance)
		if err != nil {
			return fmt.Errorf("upsert chain %s: %w", chain.ID, err)
		}
	}

	if pattern != nil {
		ids, _ := json.Marshal(pattern.FragmentIDs)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO temporal_patterns (id, pattern_type, fragment_ids, signature, confidence, last_occurrence)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				fragment_ids = excluded.fragment_ids,
				confidence = excluded.confidence,
				last_occurrence = excluded.last_occurrence
		`, pattern.ID, pattern.Type, string(ids), pattern.Signature,
			pattern.Confidence, formatTime(pattern.LastOccurrence))
		if err != nil {
			return fmt.Errorf("upsert pattern %s: %w", pattern.ID, err)
		}
	}

	if arc != nil {
		ids, _ := json.Marshal(arc.FragmentIDs)
		moments, _ := json.Marshal(arc.KeyMoments)
		themes, _ := json.Marshal(arc.Themes)
		trajectory, _ := json.Marshal(arc.EmotionalTrajectory)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO narrative_arcs (id, title, fragment_ids, key_moments, themes,
				emotional_trajectory, resolution_status, significance, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				fragment_ids = excluded.fragment_ids,
				key_moments = excluded.key_moments,
				themes = excluded.themes,
				emotional_trajectory = excluded.emotional_trajectory,
				resolution_status = excluded.resolution_status,
				significance = excluded.significance
		`, arc.ID, arc.Title, string(ids), string(moments), string(themes),
			string(trajectory), arc.ResolutionStatus, arc.Significance, formatTime(arc.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert arc %s: %w", arc.ID, err)
		}
	}

	for _, l := range links {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO causal_links (cause_id, effect_id, relationship, confidence, temporal_delay_sec, detected_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, l.CauseID, l.EffectID, l.Relationship, l.Confidence,
			int64(l.TemporalDelay.Seconds()), formatTime(l.DetectedAt))
		if err != nil {
			return fmt.Errorf("insert causal link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetEpisodicStory returns chains overlapping [from, to] with significance at
// or above the threshold, in chronological order.
func (tl *Timeline) GetEpisodicStory(from, to time.Time, minSignificance float64) []EpisodicChain {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	var out []EpisodicChain
	for _, c := range tl.chains {
		if c.SpanEnd.Before(from) || c.SpanStart.After(to) {
			continue
		}
		if c.Significance < minSignificance {
			continue
		}
		out = append(out, *cloneChain(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpanStart.Equal(out[j].SpanStart) {
			return out[i].SpanStart.Before(out[j].SpanStart)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetCausalNetwork returns the one-hop causes and effects of a fragment.
func (tl *Timeline) GetCausalNetwork(fragmentID string) CausalNetwork {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	net := CausalNetwork{FragmentID: fragmentID}
	for _, l := range tl.links {
		switch fragmentID {
		case l.EffectID:
			net.Causes = append(net.Causes, l)
		case l.CauseID:
			net.Effects = append(net.Effects, l)
		}
	}
	return net
}

// DetectTemporalPatterns returns patterns of the given type whose confidence
// has climbed above the reporting floor, strongest first.
func (tl *Timeline) DetectTemporalPatterns(patternType string) []TemporalPattern {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	var out []TemporalPattern
	for _, p := range tl.patterns {
		if p.Type != patternType {
			continue
		}
		if p.Confidence <= tl.cfg.PatternFloor+confidenceEpsilon {
			continue
		}
		out = append(out, *clonePattern(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (tl *Timeline) sortedChainIDs() []string {
	ids := make([]string, 0, len(tl.chains))
	for id := range tl.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// chainSignificance rewards length, temporal span, and causal density:
// 0.4*min(len/10,1) + 0.3*min(spanHours/168,1) + 0.3*(causal/max(len-1,1)).
func chainSignificance(c *EpisodicChain) float64 {
	n := len(c.Members)
	length := math.Min(float64(n)/10, 1)
	span := math.Min(c.SpanEnd.Sub(c.SpanStart).Hours()/168, 1)
	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}
	causal := float64(c.CausalCount) / denom
	return 0.4*length + 0.3*span + 0.3*causal
}

// arcSignificance blends arc length with its average emotional valence.
func arcSignificance(a *NarrativeArc) float64 {
	length := math.Min(float64(len(a.FragmentIDs))/10, 1)
	avg := 0.0
	if len(a.EmotionalTrajectory) > 0 {
		sum := 0.0
		for _, v := range a.EmotionalTrajectory {
			sum += v
		}
		avg = sum / float64(len(a.EmotionalTrajectory))
	}
	return 0.5*length + 0.5*avg
}

func chainContains(c *EpisodicChain, fragmentID string) bool {
	for _, m := range c.Members {
		if m.FragmentID == fragmentID {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func cloneChain(c *EpisodicChain) *EpisodicChain {
	out := *c
	out.Members = append([]ChainMember(nil), c.Members...)
	return &out
}

func clonePattern(p *TemporalPattern) *TemporalPattern {
	out := *p
	out.FragmentIDs = append([]string(nil), p.FragmentIDs...)
	return &out
}

func cloneArc(a *NarrativeArc) *NarrativeArc {
	out := *a
	out.FragmentIDs = append([]string(nil), a.FragmentIDs...)
	out.KeyMoments = append([]string(nil), a.KeyMoments...)
	out.Themes = append([]string(nil), a.Themes...)
	out.EmotionalTrajectory = append([]float64(nil), a.EmotionalTrajectory...)
	return &out
}
