package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Drift alert types.
const (
	DriftConfidenceDecay = "confidence_decay"
	DriftContradiction   = "contradiction"
	DriftCoherenceLoss   = "coherence_loss"
	DriftOrphanedMemory  = "orphaned_memory"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Health trends.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Overall statuses reported by GetHealthSummary.
const (
	StatusCritical  = "critical"
	StatusWarning   = "warning"
	StatusGood      = "good"
	StatusExcellent = "excellent"
)

// DriftAlert reports a detected degradation. Only the Resolved flag (and its
// note) ever mutates, via ResolveAlert.
type DriftAlert struct {
	ID                string    `json:"id"`
	DriftType         string    `json:"drift_type"`
	Affected          []string  `json:"affected"`
	Severity          string    `json:"severity"`
	Description       string    `json:"description"`
	RecommendedAction string    `json:"recommended_action"`
	DetectedAt        time.Time `json:"detected_at"`
	Resolved          bool      `json:"resolved"`
	ResolutionNote    string    `json:"resolution_note,omitempty"`
}

// MemoryHealth is one append-only snapshot of overall memory health.
type MemoryHealth struct {
	TotalFragments     int       `json:"total_fragments"`
	TotalClusters      int       `json:"total_clusters"`
	AverageConfidence  float64   `json:"average_confidence"`
	ContradictionCount int       `json:"contradiction_count"`
	OrphanedFragments  int       `json:"orphaned_fragments"`
	CoherenceScore     float64   `json:"coherence_score"`
	LastMaintenance    time.Time `json:"last_maintenance"`
	HealthTrend        string    `json:"health_trend"`
}

// HealthSummary condenses the latest snapshot and the active alert set for
// operators.
type HealthSummary struct {
	OverallStatus  string        `json:"overall_status"`
	Latest         *MemoryHealth `json:"latest,omitempty"`
	ActiveAlerts   int           `json:"active_alerts"`
	CriticalAlerts int           `json:"critical_alerts"`
	Snapshots      int           `json:"snapshots"`
}

// PulseMonitor owns drift alerts and health snapshots. It only ever reads
// the fragment and cluster populations handed to it; a pulse check commits
// its snapshot and all derived alerts atomically, or not at all.
type PulseMonitor struct {
	db  *sql.DB
	cfg Config

	mu        sync.Mutex
	alerts    map[string]*DriftAlert
	snapshots []MemoryHealth

	nowFn func() time.Time
}

// NewPulseMonitor creates a pulse monitor over the given database handle.
func NewPulseMonitor(db *sql.DB, cfg Config) *PulseMonitor {
	return &PulseMonitor{
		db:     db,
		cfg:    cfg,
		alerts: make(map[string]*DriftAlert),
		nowFn:  time.Now,
	}
}

// Load restores persisted alerts and health snapshots.
func (p *PulseMonitor) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, drift_type, affected, severity, description, recommended_action,
		       detected_at, resolved, resolution_note
		FROM drift_alerts
	`)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a DriftAlert
		var affected, detectedAt string
		var resolved int
		var note sql.NullString
		if err := rows.Scan(&a.ID, &a.DriftType, &affected, &a.Severity, &a.Description,
			&a.RecommendedAction, &detectedAt, &resolved, &note); err != nil {
			return fmt.Errorf("scan alert: %w", err)
		}
		json.Unmarshal([]byte(affected), &a.Affected)
		a.DetectedAt = parseTime(detectedAt)
		a.Resolved = resolved == 1
		a.ResolutionNote = note.String
		p.alerts[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate alerts: %w", err)
	}

	snapRows, err := p.db.QueryContext(ctx, `
		SELECT total_fragments, total_clusters, average_confidence, contradiction_count,
		       orphaned_fragments, coherence_score, health_trend, taken_at
		FROM health_snapshots ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	defer snapRows.Close()

	for snapRows.Next() {
		var h MemoryHealth
		var takenAt string
		if err := snapRows.Scan(&h.TotalFragments, &h.TotalClusters, &h.AverageConfidence,
			&h.ContradictionCount, &h.OrphanedFragments, &h.CoherenceScore, &h.HealthTrend, &takenAt); err != nil {
			return fmt.Errorf("scan snapshot: %w", err)
		}
		h.LastMaintenance = parseTime(takenAt)

		if h.CoherenceScore < 0 || h.CoherenceScore > 1 {
			verr := &DataIntegrityError{Record: "health_snapshot", ID: takenAt,
				Reason: fmt.Sprintf("coherence %v out of range", h.CoherenceScore)}
			log.Warn().Err(verr).Msg("excluding corrupt snapshot record")
			continue
		}
		p.snapshots = append(p.snapshots, h)
	}
	if err := snapRows.Err(); err != nil {
		return fmt.Errorf("iterate snapshots: %w", err)
	}

	log.Info().
		Int("alerts", len(p.alerts)).
		Int("snapshots", len(p.snapshots)).
		Msg("pulse monitor loaded")
	return nil
}

// RunPulseCheck audits the given fragment and cluster populations, producing
// a health snapshot and any derived drift alerts. The snapshot and alerts
// commit together or not at all; a cancelled check leaves previously
// committed state untouched.
func (p *PulseMonitor) RunPulseCheck(ctx context.Context, fragments []Fragment, clusters []ConceptCluster) (*MemoryHealth, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn()
	n := len(fragments)

	avgConfidence := 0.0
	if n > 0 {
		sum := 0.0
		for _, f := range fragments {
			sum += f.Confidence
		}
		avgConfidence = sum / float64(n)
	}

	clustered := make(map[string]struct{})
	strengthSum := 0.0
	for _, c := range clusters {
		strengthSum += c.ClusterStrength
		for _, id := range c.MemberFragments {
			clustered[id] = struct{}{}
		}
	}
	avgStrength := 0.0
	if len(clusters) > 0 {
		avgStrength = strengthSum / float64(len(clusters))
	}

	contradictionPairs := p.confidenceContradictions(fragments)

	var orphans []string
	for _, f := range fragments {
		if _, ok := clustered[f.ID]; ok {
			continue
		}
		if len(f.AssociativeLinks) > 0 {
			continue
		}
		if now.Sub(f.CreatedAt) > p.cfg.OrphanAge {
			orphans = append(orphans, f.ID)
		}
	}

	coherence := 1.0
	if n > 0 {
		clusteredCount := 0
		totalLinks := 0
		for _, f := range fragments {
			if _, ok := clustered[f.ID]; ok {
				clusteredCount++
			}
			totalLinks += len(f.AssociativeLinks)
		}
		clusteringRatio := float64(clusteredCount) / float64(n)
		density := math.Min(float64(totalLinks)/(2*float64(n)), 1)
		coherence = 0.3*clusteringRatio + 0.25*avgStrength +
			0.25*(1-populationVariance(fragments)) + 0.2*density
		coherence = math.Max(0, math.Min(1, coherence))
	}

	health := MemoryHealth{
		TotalFragments:     n,
		TotalClusters:      len(clusters),
		AverageConfidence:  avgConfidence,
		ContradictionCount: len(contradictionPairs),
		OrphanedFragments:  len(orphans),
		CoherenceScore:     coherence,
		LastMaintenance:    now,
		HealthTrend:        p.computeTrend(coherence, avgConfidence, len(contradictionPairs)),
	}

	alerts := p.buildAlerts(health, fragments, contradictionPairs, orphans, now)

	if err := p.persistPulse(ctx, health, alerts); err != nil {
		return nil, &PersistenceError{Op: "pulse check", Err: err}
	}

	p.snapshots = append(p.snapshots, health)
	for _, a := range alerts {
		p.alerts[a.ID] = a
	}

	log.Info().
		Int("fragments", n).
		Int("clusters", len(clusters)).
		Float64("coherence", coherence).
		Int("alerts", len(alerts)).
		Str("trend", health.HealthTrend).
		Msg("pulse check complete")
	return &health, nil
}

// confidenceContradictions is the pulse monitor's variance-based signal,
// independent of the cluster manager's lexical one. Fragments are grouped by
// shared tag; inside groups whose sample confidence variance exceeds the
// threshold, every pair differing by more than the pair gap is flagged.
// Sample variance is used so the threshold is reachable for small groups.
func (p *PulseMonitor) confidenceContradictions(fragments []Fragment) [][2]string {
	byTag := make(map[string][]Fragment)
	for _, f := range fragments {
		for _, t := range lowerSet(f.Tags) {
			byTag[t] = append(byTag[t], f)
		}
	}

	tags := make([]string, 0, len(byTag))
	for t := range byTag {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	seen := make(map[string]struct{})
	var pairs [][2]string
	for _, t := range tags {
		group := byTag[t]
		if len(group) < 2 {
			continue
		}
		if sampleVariance(group) <= p.cfg.VarianceThreshold {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if math.Abs(group[i].Confidence-group[j].Confidence) <= p.cfg.ConfidencePairGap {
					continue
				}
				a, b := group[i].ID, group[j].ID
				if b < a {
					a, b = b, a
				}
				key := a + "\x00" + b
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, [2]string{a, b})
			}
		}
	}
	return pairs
}

// computeTrend compares against the prior snapshot through a weighted delta
// of coherence, confidence, and contradiction count. Stable when no prior
// snapshot exists.
func (p *PulseMonitor) computeTrend(coherence, avgConfidence float64, contradictions int) string {
	if len(p.snapshots) == 0 {
		return TrendStable
	}
	prev := p.snapshots[len(p.snapshots)-1]
	delta := 0.5*(coherence-prev.CoherenceScore) +
		0.3*(avgConfidence-prev.AverageConfidence) -
		0.02*float64(contradictions-prev.ContradictionCount)
	switch {
	case delta > p.cfg.TrendEpsilon:
		return TrendImproving
	case delta < -p.cfg.TrendEpsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func (p *PulseMonitor) buildAlerts(health MemoryHealth, fragments []Fragment,
	pairs [][2]string, orphans []string, now time.Time) []*DriftAlert {

	var alerts []*DriftAlert
	newAlert := func(driftType, severity, description, action string, affected []string) {
		alerts = append(alerts, &DriftAlert{
			ID:                "alert_" + uuid.New().String()[:8],
			DriftType:         driftType,
			Affected:          affected,
			Severity:          severity,
			Description:       description,
			RecommendedAction: action,
			DetectedAt:        now,
		})
	}

	if health.TotalFragments > 0 && health.AverageConfidence < p.cfg.LowConfidence {
		severity := SeverityMedium
		if health.AverageConfidence < p.cfg.SevereConfidence {
			severity = SeverityHigh
		}
		var weak []string
		for _, f := range fragments {
			if f.Confidence < p.cfg.LowConfidence {
				weak = append(weak, f.ID)
			}
		}
		sort.Strings(weak)
		newAlert(DriftConfidenceDecay, severity,
			fmt.Sprintf("average fragment confidence is %.2f", health.AverageConfidence),
			"review and reinforce low-confidence fragments", weak)
	}

	if health.ContradictionCount > p.cfg.ContradictionAlertCount {
		affected := make([]string, 0, len(pairs)*2)
		for _, pr := range pairs {
			affected = append(affected, pr[0], pr[1])
		}
		newAlert(DriftContradiction, SeverityHigh,
			fmt.Sprintf("%d contradictory fragment pairs detected", health.ContradictionCount),
			"reconcile conflicting fragments sharing tags", affected)
	}

	if health.TotalFragments > 0 && health.CoherenceScore < p.cfg.CoherenceWarn {
		severity := SeverityHigh
		if health.CoherenceScore < p.cfg.CoherenceCritical {
			severity = SeverityCritical
		}
		newAlert(DriftCoherenceLoss, severity,
			fmt.Sprintf("memory coherence dropped to %.2f", health.CoherenceScore),
			"re-cluster recent fragments and review association density", nil)
	}

	if health.OrphanedFragments > p.cfg.OrphanAlertCount {
		newAlert(DriftOrphanedMemory, SeverityMedium,
			fmt.Sprintf("%d fragments are unclustered, unlinked, and stale", health.OrphanedFragments),
			"link or archive orphaned fragments", orphans)
	}

	return alerts
}

func (p *PulseMonitor) persistPulse(ctx context.Context, health MemoryHealth, alerts []*DriftAlert) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO health_snapshots (total_fragments, total_clusters, average_confidence,
			contradiction_count, orphaned_fragments, coherence_score, health_trend, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, health.TotalFragments, health.TotalClusters, health.AverageConfidence,
		health.ContradictionCount, health.OrphanedFragments, health.CoherenceScore,
		health.HealthTrend, formatTime(health.LastMaintenance))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, a := range alerts {
		affected, _ := json.Marshal(a.Affected)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drift_alerts (id, drift_type, affected, severity, description,
				recommended_action, detected_at, resolved, resolution_note)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)
		`, a.ID, a.DriftType, string(affected), a.Severity, a.Description,
			a.RecommendedAction, formatTime(a.DetectedAt))
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetActiveAlerts returns unresolved alerts, newest first, optionally
// filtered by severity.
func (p *PulseMonitor) GetActiveAlerts(severity string) []DriftAlert {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []DriftAlert
	for _, a := range p.alerts {
		if a.Resolved {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		copied := *a
		copied.Affected = append([]string(nil), a.Affected...)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolveAlert marks an alert resolved with an operator note. NotFoundError
// for unknown ids; the resolved flag is the only field that ever mutates.
func (p *PulseMonitor) ResolveAlert(ctx context.Context, id, note string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	alert, ok := p.alerts[id]
	if !ok {
		return &NotFoundError{Kind: "alert", Key: id}
	}
	if alert.Resolved {
		return nil
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE drift_alerts SET resolved = 1, resolution_note = ? WHERE id = ? AND resolved = 0
	`, note, id)
	if err != nil {
		return &PersistenceError{Op: "resolve alert", Err: err}
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// The durable row no longer matches what we loaded.
		return &ConcurrentMutationError{Record: "drift_alert", ID: id}
	}

	alert.Resolved = true
	alert.ResolutionNote = note
	return nil
}

// GetHealthSummary condenses the latest snapshot and active alerts into an
// overall status: critical > warning > excellent > good.
func (p *PulseMonitor) GetHealthSummary() HealthSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := HealthSummary{Snapshots: len(p.snapshots)}
	anyHigh := false
	for _, a := range p.alerts {
		if a.Resolved {
			continue
		}
		summary.ActiveAlerts++
		switch a.Severity {
		case SeverityCritical:
			summary.CriticalAlerts++
		case SeverityHigh:
			anyHigh = true
		}
	}

	var latest *MemoryHealth
	if len(p.snapshots) > 0 {
		copied := p.snapshots[len(p.snapshots)-1]
		latest = &copied
		summary.Latest = latest
	}

	switch {
	case summary.CriticalAlerts > 0:
		summary.OverallStatus = StatusCritical
	case anyHigh || (latest != nil && latest.CoherenceScore < p.cfg.SummaryWarnCoherence):
		summary.OverallStatus = StatusWarning
	case latest != nil &&
		latest.CoherenceScore > p.cfg.SummaryExcellentCoherence &&
		latest.AverageConfidence > p.cfg.SummaryExcellentConfidence:
		summary.OverallStatus = StatusExcellent
	default:
		summary.OverallStatus = StatusGood
	}
	return summary
}

// populationVariance of fragment confidences; bounded by 0.25 on [0,1], so
// the 1-variance coherence term never leaves [0,1].
func populationVariance(fragments []Fragment) float64 {
	n := len(fragments)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, f := range fragments {
		mean += f.Confidence
	}
	mean /= float64(n)
	sum := 0.0
	for _, f := range fragments {
		d := f.Confidence - mean
		sum += d * d
	}
	return sum / float64(n)
}

// sampleVariance (n-1 denominator) of a tag group's confidences.
func sampleVariance(fragments []Fragment) float64 {
	n := len(fragments)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, f := range fragments {
		mean += f.Confidence
	}
	mean /= float64(n)
	sum := 0.0
	for _, f := range fragments {
		d := f.Confidence - mean
		sum += d * d
	}
	return sum / float64(n-1)
}
