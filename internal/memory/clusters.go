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

// antonymPairs drive the lexical contradiction signal. Matching is
// whole-word, against the flattened search text of fragment content.
var antonymPairs = [][2]string{
	{"success", "failure"},
	{"good", "bad"},
	{"yes", "no"},
	{"true", "false"},
	{"works", "broken"},
	{"correct", "wrong"},
}

// EvolutionPoint is one (time, confidence) sample of a cluster's history.
type EvolutionPoint struct {
	At         time.Time `json:"at"`
	Confidence float64   `json:"confidence"`
}

// ConceptCluster is a named thematic grouping of fragments. The central
// concept is immutable; everything else grows as fragments attach. A cluster
// is never deleted and never empty while it exists.
type ConceptCluster struct {
	ID                string           `json:"id"`
	CentralConcept    string           `json:"central_concept"`
	RelatedConcepts   []string         `json:"related_concepts"`
	MemberFragments   []string         `json:"member_fragments"`
	ClusterStrength   float64          `json:"cluster_strength"`
	TemporalEvolution []EvolutionPoint `json:"temporal_evolution"`
	NarrativeThemes   []string         `json:"narrative_themes"`
	CreatedAt         time.Time        `json:"created_at"`
}

// ConceptEvolution tracks how a concept's confidence evolves, as four
// parallel append-only sequences. The sequences always have equal length.
type ConceptEvolution struct {
	Concept     string      `json:"concept"`
	Timestamps  []time.Time `json:"timestamps"`
	Confidences []float64   `json:"confidences"`
	FragmentIDs []string    `json:"fragment_ids"`
	Contexts    []string    `json:"contexts"`
}

// ConceptContradiction is one entry of the append-only lexical contradiction
// log.
type ConceptContradiction struct {
	Concept    string    `json:"concept"`
	FragmentA  string    `json:"fragment_a"`
	FragmentB  string    `json:"fragment_b"`
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

// ConceptDrift summarizes a concept's recent evolution window.
type ConceptDrift struct {
	Concept           string  `json:"concept"`
	RecentOccurrences int     `json:"recent_occurrences"`
	ConfidenceTrend   string  `json:"confidence_trend"` // increasing, decreasing, stable
	AverageConfidence float64 `json:"average_confidence"`
	ContextDiversity  float64 `json:"context_diversity"`
}

// ClusterManager owns concept clusters, concept evolutions, and the lexical
// contradiction log. All state is held in memory and persisted write-through;
// a persistence failure rolls the in-memory change back.
type ClusterManager struct {
	db        *sql.DB
	cfg       Config
	extractor KeywordExtractor

	mu             sync.Mutex
	clusters       map[string]*ConceptCluster
	evolutions     map[string]*ConceptEvolution
	contradictions []ConceptContradiction

	// searchText caches the flattened content of fragments already seen, so
	// lexical checks can compare against co-present cluster members. Derived
	// cache, not owned state.
	searchText map[string]string

	nowFn func() time.Time
}

// NewClusterManager creates a cluster manager over the given database handle.
func NewClusterManager(db *sql.DB, extractor KeywordExtractor, cfg Config) *ClusterManager {
	if extractor == nil {
		extractor = NewStopwordExtractor()
	}
	return &ClusterManager{
		db:         db,
		cfg:        cfg,
		extractor:  extractor,
		clusters:   make(map[string]*ConceptCluster),
		evolutions: make(map[string]*ConceptEvolution),
		searchText: make(map[string]string),
		nowFn:      time.Now,
	}
}

// Load restores persisted clusters, evolutions, and contradictions. Records
// violating structural invariants are excluded and logged; the rest of the
// load proceeds.
func (m *ClusterManager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, central_concept, related_concepts, member_fragments,
		       cluster_strength, temporal_evolution, narrative_themes, created_at
		FROM concept_clusters
	`)
	if err != nil {
		return fmt.Errorf("load clusters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ConceptCluster
		var related, members, evolution, themes, createdAt string
		if err := rows.Scan(&c.ID, &c.CentralConcept, &related, &members,
			&c.ClusterStrength, &evolution, &themes, &createdAt); err != nil {
			return fmt.Errorf("scan cluster: %w", err)
		}
		json.Unmarshal([]byte(related), &c.RelatedConcepts)
		json.Unmarshal([]byte(members), &c.MemberFragments)
		json.Unmarshal([]byte(evolution), &c.TemporalEvolution)
		json.Unmarshal([]byte(themes), &c.NarrativeThemes)
		c.CreatedAt = parseTime(createdAt)

		if verr := validateCluster(&c); verr != nil {
			log.Warn().Err(verr).Str("cluster_id", c.ID).Msg("excluding corrupt cluster record")
			continue
		}
		m.clusters[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate clusters: %w", err)
	}

	evRows, err := m.db.QueryContext(ctx, `
		SELECT concept, timestamps, confidences, fragment_ids, contexts
		FROM concept_evolutions
	`)
	if err != nil {
		return fmt.Errorf("load evolutions: %w", err)
	}
	defer evRows.Close()

	for evRows.Next() {
		var ev ConceptEvolution
		var ts, confs, ids, ctxs string
		if err := evRows.Scan(&ev.Concept, &ts, &confs, &ids, &ctxs); err != nil {
			return fmt.Errorf("scan evolution: %w", err)
		}
		var stamps []string
		json.Unmarshal([]byte(ts), &stamps)
		json.Unmarshal([]byte(confs), &ev.Confidences)
		json.Unmarshal([]byte(ids), &ev.FragmentIDs)
		json.Unmarshal([]byte(ctxs), &ev.Contexts)
		for _, s := range stamps {
			ev.Timestamps = append(ev.Timestamps, parseTime(s))
		}

		if len(ev.Timestamps) != len(ev.Confidences) ||
			len(ev.Timestamps) != len(ev.FragmentIDs) ||
			len(ev.Timestamps) != len(ev.Contexts) {
			verr := &DataIntegrityError{Record: "concept_evolution", ID: ev.Concept, Reason: "mismatched sequence lengths"}
			log.Warn().Err(verr).Str("concept", ev.Concept).Msg("excluding corrupt evolution record")
			continue
		}
		m.evolutions[ev.Concept] = &ev
	}
	if err := evRows.Err(); err != nil {
		return fmt.Errorf("iterate evolutions: %w", err)
	}

	coRows, err := m.db.QueryContext(ctx, `
		SELECT concept, fragment_a, fragment_b, contradiction_type, confidence, detected_at
		FROM concept_contradictions ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("load contradictions: %w", err)
	}
	defer coRows.Close()

	for coRows.Next() {
		var c ConceptContradiction
		var detectedAt string
		if err := coRows.Scan(&c.Concept, &c.FragmentA, &c.FragmentB, &c.Type, &c.Confidence, &detectedAt); err != nil {
			return fmt.Errorf("scan contradiction: %w", err)
		}
		c.DetectedAt = parseTime(detectedAt)
		m.contradictions = append(m.contradictions, c)
	}
	if err := coRows.Err(); err != nil {
		return fmt.Errorf("iterate contradictions: %w", err)
	}

	log.Info().
		Int("clusters", len(m.clusters)).
		Int("evolutions", len(m.evolutions)).
		Int("contradictions", len(m.contradictions)).
		Msg("cluster manager loaded")
	return nil
}

func validateCluster(c *ConceptCluster) error {
	if c.CentralConcept == "" {
		return &DataIntegrityError{Record: "concept_cluster", ID: c.ID, Reason: "empty central concept"}
	}
	if len(c.MemberFragments) == 0 {
		return &DataIntegrityError{Record: "concept_cluster", ID: c.ID, Reason: "empty member set"}
	}
	if c.ClusterStrength < 0 || c.ClusterStrength > 1 {
		return &DataIntegrityError{Record: "concept_cluster", ID: c.ID,
			Reason: fmt.Sprintf("strength %v out of range", c.ClusterStrength)}
	}
	return nil
}

// ProcessNewFragment assigns the fragment's concepts to clusters, records
// concept evolution, and runs lexical contradiction detection. It returns the
// ids of every affected cluster. Fragments must arrive in non-decreasing
// creation-time order; that contract is the caller's.
func (m *ClusterManager) ProcessNewFragment(ctx context.Context, frag Fragment) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	concepts := m.conceptSet(frag)
	text := frag.Content.SearchText()

	if len(concepts) == 0 {
		m.searchText[frag.ID] = text
		return nil, nil
	}

	// Stage every change on copies; nothing touches the live maps until the
	// transaction commits.
	touched := make(map[string]*ConceptCluster)
	stage := func(id string) *ConceptCluster {
		if c, ok := touched[id]; ok {
			return c
		}
		c := cloneCluster(m.clusters[id])
		touched[id] = c
		return c
	}
	view := func(id string) *ConceptCluster {
		if c, ok := touched[id]; ok {
			return c
		}
		return m.clusters[id]
	}
	allIDs := func() []string {
		ids := make([]string, 0, len(m.clusters)+len(touched))
		seen := make(map[string]struct{})
		for id := range m.clusters {
			ids = append(ids, id)
			seen[id] = struct{}{}
		}
		for id := range touched {
			if _, ok := seen[id]; !ok {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids
	}

	tags := lowerSet(frag.Tags)
	assigned := make(map[string]string) // concept -> cluster id

	attach := func(c *ConceptCluster, concept string) {
		if !containsString(c.MemberFragments, frag.ID) {
			c.MemberFragments = append(c.MemberFragments, frag.ID)
			c.TemporalEvolution = append(c.TemporalEvolution, EvolutionPoint{At: frag.CreatedAt, Confidence: frag.Confidence})
		}
		c.RelatedConcepts = unionSorted(c.RelatedConcepts, tags)
		c.ClusterStrength = clusterStrength(len(c.MemberFragments), len(c.RelatedConcepts), m.cfg.DiversityCeiling)
		assigned[concept] = c.ID
	}

	// Pass 1: direct matches, to fixpoint. Attaching unions the fragment's
	// tags into related_concepts, which can open direct matches for the
	// fragment's remaining concepts; iterating to fixpoint keeps the result
	// independent of concept iteration order.
	directPass := func() {
		for progress := true; progress; {
			progress = false
			for _, concept := range concepts {
				if _, done := assigned[concept]; done {
					continue
				}
				if id := m.directMatch(concept, allIDs(), view); id != "" {
					attach(stage(id), concept)
					progress = true
				}
			}
		}
	}
	directPass()

	// Pass 2: similarity attachment for concepts still unassigned.
	for _, concept := range concepts {
		if _, done := assigned[concept]; done {
			continue
		}
		fragSet := unionSorted([]string{concept}, tags)
		if id := m.similarityMatch(fragSet, allIDs(), view); id != "" {
			attach(stage(id), concept)
			directPass()
		}
	}

	// Pass 3: seed new clusters for anything left. A cluster created here
	// carries the fragment's tags as related concepts, so later leftover
	// concepts may direct-match it instead of seeding their own.
	for _, concept := range concepts {
		if _, done := assigned[concept]; done {
			continue
		}
		if id := m.directMatch(concept, allIDs(), view); id != "" {
			attach(stage(id), concept)
			continue
		}
		c := &ConceptCluster{
			ID:                m.newClusterID(concept, frag.ID, view),
			CentralConcept:    concept,
			RelatedConcepts:   unionSorted(nil, tags),
			MemberFragments:   []string{frag.ID},
			TemporalEvolution: []EvolutionPoint{{At: frag.CreatedAt, Confidence: frag.Confidence}},
			NarrativeThemes:   []string{frag.themeLabel()},
			CreatedAt:         frag.CreatedAt,
		}
		c.ClusterStrength = clusterStrength(1, len(c.RelatedConcepts), m.cfg.DiversityCeiling)
		touched[c.ID] = c
		assigned[concept] = c.ID
	}

	// Concept evolution entries, one per concept.
	evTouched := make(map[string]*ConceptEvolution)
	evContext := frag.themeLabel()
	for _, concept := range concepts {
		ev, ok := evTouched[concept]
		if !ok {
			ev = cloneEvolution(m.evolutions[concept])
			ev.Concept = concept
			evTouched[concept] = ev
		}
		ev.Timestamps = append(ev.Timestamps, frag.CreatedAt)
		ev.Confidences = append(ev.Confidences, frag.Confidence)
		ev.FragmentIDs = append(ev.FragmentIDs, frag.ID)
		ev.Contexts = append(ev.Contexts, evContext)
	}

	newContradictions := m.detectContradictions(frag, text, concepts, assigned, view)

	if err := m.persistFragmentChanges(ctx, touched, evTouched, newContradictions); err != nil {
		return nil, &PersistenceError{Op: "fragment clustering", Err: err}
	}

	// Commit to memory only after the transaction succeeded.
	for id, c := range touched {
		m.clusters[id] = c
	}
	for concept, ev := range evTouched {
		m.evolutions[concept] = ev
	}
	m.contradictions = append(m.contradictions, newContradictions...)
	m.searchText[frag.ID] = text

	affected := make([]string, 0, len(touched))
	for id := range touched {
		affected = append(affected, id)
	}
	sort.Strings(affected)

	log.Debug().
		Str("fragment_id", frag.ID).
		Int("concepts", len(concepts)).
		Int("affected_clusters", len(affected)).
		Int("contradictions", len(newContradictions)).
		Msg("fragment clustered")
	return affected, nil
}

// conceptSet is the fragment's tags unioned with keywords extracted from its
// content, lowercased, deduplicated, sorted.
func (m *ClusterManager) conceptSet(frag Fragment) []string {
	set := make(map[string]struct{})
	for _, t := range frag.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	for _, k := range m.extractor.Extract(frag.Content.SearchText()) {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// directMatch finds the cluster holding concept as its central concept or
// inside related_concepts. Central matches win over related matches; ties
// break on larger member count, then lowest id.
func (m *ClusterManager) directMatch(concept string, ids []string, view func(string) *ConceptCluster) string {
	bestID := ""
	bestCentral := false
	bestMembers := -1
	for _, id := range ids {
		c := view(id)
		central := c.CentralConcept == concept
		if !central && !containsString(c.RelatedConcepts, concept) {
			continue
		}
		switch {
		case central && !bestCentral,
			central == bestCentral && len(c.MemberFragments) > bestMembers,
			central == bestCentral && len(c.MemberFragments) == bestMembers && (bestID == "" || id < bestID):
			bestID, bestCentral, bestMembers = id, central, len(c.MemberFragments)
		}
	}
	return bestID
}

// similarityMatch finds the highest-Jaccard cluster at or above the
// similarity threshold. Ties break on larger member count, then lowest id.
func (m *ClusterManager) similarityMatch(fragSet []string, ids []string, view func(string) *ConceptCluster) string {
	bestID := ""
	bestSim := 0.0
	bestMembers := -1
	for _, id := range ids {
		c := view(id)
		clusterSet := unionSorted([]string{c.CentralConcept}, c.RelatedConcepts)
		sim := jaccard(fragSet, clusterSet)
		if sim < m.cfg.SimilarityThreshold {
			continue
		}
		switch {
		case sim > bestSim,
			sim == bestSim && len(c.MemberFragments) > bestMembers,
			sim == bestSim && len(c.MemberFragments) == bestMembers && (bestID == "" || id < bestID):
			bestID, bestSim, bestMembers = id, sim, len(c.MemberFragments)
		}
	}
	return bestID
}

// newClusterID derives a deterministic cluster id from the central concept,
// so replays from a cold store reproduce identical ids.
func (m *ClusterManager) newClusterID(concept, fragID string, view func(string) *ConceptCluster) string {
	slug := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, concept)
	id := "cluster_" + slug
	if c := view(id); c != nil && c.CentralConcept != concept {
		// Slug collision with a different concept; disambiguate with the
		// seeding fragment, which is still deterministic under replay.
		id = id + "-" + fragID
	}
	return id
}

// detectContradictions scans the fragment for antonym pairs, both within its
// own content and against co-present members of the clusters its concepts
// landed in.
func (m *ClusterManager) detectContradictions(frag Fragment, text string, concepts []string,
	assigned map[string]string, view func(string) *ConceptCluster) []ConceptContradiction {

	words := wordSet(text)
	var out []ConceptContradiction
	seen := make(map[string]struct{})

	emit := func(concept, a, b string) {
		key := concept + "\x00" + a + "\x00" + b
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, ConceptContradiction{
			Concept:    concept,
			FragmentA:  a,
			FragmentB:  b,
			Type:       "semantic",
			Confidence: m.cfg.ContradictionConfidence,
			DetectedAt: frag.CreatedAt,
		})
	}

	for _, concept := range concepts {
		clusterID, ok := assigned[concept]
		if !ok {
			continue
		}
		cluster := view(clusterID)
		for _, pair := range antonymPairs {
			_, hasA := words[pair[0]]
			_, hasB := words[pair[1]]
			if hasA && hasB {
				emit(concept, frag.ID, frag.ID)
				continue
			}
			if !hasA && !hasB {
				continue
			}
			needle := pair[0]
			if hasA {
				needle = pair[1]
			}
			for _, memberID := range cluster.MemberFragments {
				if memberID == frag.ID {
					continue
				}
				memberText, cached := m.searchText[memberID]
				if !cached {
					continue
				}
				if _, present := wordSet(memberText)[needle]; present {
					emit(concept, frag.ID, memberID)
				}
			}
		}
	}
	return out
}

func (m *ClusterManager) persistFragmentChanges(ctx context.Context,
	clusters map[string]*ConceptCluster, evolutions map[string]*ConceptEvolution,
	contradictions []ConceptContradiction) error {

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range clusters {
		related, _ := json.Marshal(c.RelatedConcepts)
		members, _ := json.Marshal(c.MemberFragments)
		evolution, _ := json.Marshal(c.TemporalEvolution)
		themes, _ := json.Marshal(c.NarrativeThemes)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO concept_clusters (
				id, central_concept, related_concepts, member_fragments,
				cluster_strength, temporal_evolution, narrative_themes, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				related_concepts = excluded.related_concepts,
				member_fragments = excluded.member_fragments,
				cluster_strength = excluded.cluster_strength,
				temporal_evolution = excluded.temporal_evolution,
				narrative_themes = excluded.narrative_themes
		`, c.ID, c.CentralConcept, string(related), string(members),
			c.ClusterStrength, string(evolution), string(themes), formatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert cluster %s: %w", c.ID, err)
		}
	}

	for _, ev := range evolutions {
		stamps := make([]string, len(ev.Timestamps))
		for i, t := range ev.Timestamps {
			stamps[i] = formatTime(t)
		}
		ts, _ := json.Marshal(stamps)
		confs, _ := json.Marshal(ev.Confidences)
		ids, _ := json.Marshal(ev.FragmentIDs)
		ctxs, _ := json.Marshal(ev.Contexts)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO concept_evolutions (concept, timestamps, confidences, fragment_ids, contexts)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(concept) DO UPDATE SET
				timestamps = excluded.timestamps,
				confidences = excluded.confidences,
				fragment_ids = excluded.fragment_ids,
				contexts = excluded.contexts
		`, ev.Concept, string(ts), string(confs), string(ids), string(ctxs))
		if err != nil {
			return fmt.Errorf("upsert evolution %s: %w", ev.Concept, err)
		}
	}

	for _, c := range contradictions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO concept_contradictions
				(concept, fragment_a, fragment_b, contradiction_type, confidence, detected_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.Concept, c.FragmentA, c.FragmentB, c.Type, c.Confidence, formatTime(c.DetectedAt))
		if err != nil {
			return fmt.Errorf("insert contradiction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetConceptClusters returns every cluster at or above the given strength,
// strongest first.
func (m *ClusterManager) GetConceptClusters(minStrength float64) []ConceptCluster {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ConceptCluster
	for _, c := range m.clusters {
		if c.ClusterStrength >= minStrength {
			out = append(out, *cloneCluster(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClusterStrength != out[j].ClusterStrength {
			return out[i].ClusterStrength > out[j].ClusterStrength
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetConceptEvolution returns the evolution record for a concept, or a
// NotFoundError if the concept has never been seen.
func (m *ClusterManager) GetConceptEvolution(concept string) (*ConceptEvolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.evolutions[strings.ToLower(concept)]
	if !ok {
		return nil, &NotFoundError{Kind: "concept evolution", Key: concept}
	}
	return cloneEvolution(ev), nil
}

// GetRecentContradictions returns contradictions detected within the last
// given number of days, newest first.
func (m *ClusterManager) GetRecentContradictions(days int) []ConceptContradiction {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.nowFn().Add(-time.Duration(days) * 24 * time.Hour)
	var out []ConceptContradiction
	for _, c := range m.contradictions {
		if !c.DetectedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out
}

// AnalyzeConceptDrift summarizes a concept's evolution inside the given
// window. NotFoundError if the concept has no data points in the window.
func (m *ClusterManager) AnalyzeConceptDrift(concept string, window time.Duration) (*ConceptDrift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	concept = strings.ToLower(concept)
	ev, ok := m.evolutions[concept]
	if !ok {
		return nil, &NotFoundError{Kind: "concept", Key: concept}
	}

	cutoff := m.nowFn().Add(-window)
	var confs []float64
	contexts := make(map[string]struct{})
	total := 0
	for i, ts := range ev.Timestamps {
		if ts.Before(cutoff) {
			continue
		}
		confs = append(confs, ev.Confidences[i])
		contexts[ev.Contexts[i]] = struct{}{}
		total++
	}
	if total == 0 {
		return nil, &NotFoundError{Kind: "concept", Key: concept}
	}

	slope := confs[len(confs)-1] - confs[0]
	trend := "stable"
	switch {
	case slope >= m.cfg.DriftSlope:
		trend = "increasing"
	case slope <= -m.cfg.DriftSlope:
		trend = "decreasing"
	}

	sum := 0.0
	for _, c := range confs {
		sum += c
	}

	return &ConceptDrift{
		Concept:           concept,
		RecentOccurrences: total,
		ConfidenceTrend:   trend,
		AverageConfidence: sum / float64(total),
		ContextDiversity:  float64(len(contexts)) / float64(total),
	}, nil
}

// clusterStrength rewards member count with diminishing returns and moderate
// concept diversity: clamp(log(n+1)/log(10), 0, 1) * (0.5 + 0.5*min(r/ceil, 1)).
func clusterStrength(memberCount, relatedCount, diversityCeiling int) float64 {
	size := math.Log(float64(memberCount+1)) / math.Log(10)
	size = math.Max(0, math.Min(1, size))
	diversity := math.Min(float64(relatedCount)/float64(diversityCeiling), 1)
	return size * (0.5 + 0.5*diversity)
}

// jaccard computes Jaccard similarity between two sorted deduplicated sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	inter := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func cloneCluster(c *ConceptCluster) *ConceptCluster {
	if c == nil {
		return nil
	}
	out := *c
	out.RelatedConcepts = append([]string(nil), c.RelatedConcepts...)
	out.MemberFragments = append([]string(nil), c.MemberFragments...)
	out.TemporalEvolution = append([]EvolutionPoint(nil), c.TemporalEvolution...)
	out.NarrativeThemes = append([]string(nil), c.NarrativeThemes...)
	return &out
}

func cloneEvolution(ev *ConceptEvolution) *ConceptEvolution {
	if ev == nil {
		return &ConceptEvolution{}
	}
	return &ConceptEvolution{
		Concept:     ev.Concept,
		Timestamps:  append([]time.Time(nil), ev.Timestamps...),
		Confidences: append([]float64(nil), ev.Confidences...),
		FragmentIDs: append([]string(nil), ev.FragmentIDs...),
		Contexts:    append([]string(nil), ev.Contexts...),
	}
}

func lowerSet(in []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range a {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func wordSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		out[strings.ToLower(w)] = struct{}{}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
