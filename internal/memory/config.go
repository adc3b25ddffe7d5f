package memory

import (
	"fmt"
	"time"
)

// Config hoists every threshold the engine tunes on into one explicit,
// testable object. All three managers share a single instance.
type Config struct {
	// SimilarityThreshold is the minimum Jaccard similarity for attaching a
	// fragment to an existing cluster by concept overlap.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`

	// DiversityCeiling is the related-concept count at which a cluster earns
	// full diversity credit in its strength score.
	DiversityCeiling int `mapstructure:"diversity_ceiling" yaml:"diversity_ceiling"`

	// ContradictionConfidence is assigned to lexical contradictions.
	ContradictionConfidence float64 `mapstructure:"contradiction_confidence" yaml:"contradiction_confidence"`

	// DriftSlope is the confidence slope beyond which a concept trend is
	// reported as increasing or decreasing.
	DriftSlope float64 `mapstructure:"drift_slope" yaml:"drift_slope"`

	// ChainGap is the maximum gap between a chain's end and a new fragment
	// for the chain to remain a candidate.
	ChainGap time.Duration `mapstructure:"chain_gap" yaml:"chain_gap"`

	// ChainScoreFloor is the minimum compatibility score to extend a chain.
	ChainScoreFloor float64 `mapstructure:"chain_score_floor" yaml:"chain_score_floor"`

	// EpisodicConfidenceFloor gates starting a new single-fragment chain.
	EpisodicConfidenceFloor float64 `mapstructure:"episodic_confidence_floor" yaml:"episodic_confidence_floor"`

	// RichTextLength and RichStructuredKeys define "rich" content.
	RichTextLength     int `mapstructure:"rich_text_length" yaml:"rich_text_length"`
	RichStructuredKeys int `mapstructure:"rich_structured_keys" yaml:"rich_structured_keys"`

	// CausalWindow bounds how far back a causal marker may attach.
	CausalWindow time.Duration `mapstructure:"causal_window" yaml:"causal_window"`

	// CausalConfidence and CausalDelay are assigned to inferred causal links.
	CausalConfidence float64       `mapstructure:"causal_confidence" yaml:"causal_confidence"`
	CausalDelay      time.Duration `mapstructure:"causal_delay" yaml:"causal_delay"`

	// PatternStep is the confidence reinforcement per pattern occurrence;
	// PatternFloor is the minimum confidence for a pattern to be reported.
	PatternStep  float64 `mapstructure:"pattern_step" yaml:"pattern_step"`
	PatternFloor float64 `mapstructure:"pattern_floor" yaml:"pattern_floor"`

	// NarrativeConfidenceFloor and NarrativeMinTags gate starting a new arc.
	NarrativeConfidenceFloor float64 `mapstructure:"narrative_confidence_floor" yaml:"narrative_confidence_floor"`
	NarrativeMinTags         int     `mapstructure:"narrative_min_tags" yaml:"narrative_min_tags"`

	// KeyMomentConfidence marks a fragment as a key moment of its arc.
	KeyMomentConfidence float64 `mapstructure:"key_moment_confidence" yaml:"key_moment_confidence"`

	// OrphanAge is the minimum age for an unclustered, unlinked fragment to
	// count as orphaned.
	OrphanAge time.Duration `mapstructure:"orphan_age" yaml:"orphan_age"`

	// VarianceThreshold gates the confidence-variance contradiction signal;
	// ConfidencePairGap is the per-pair confidence difference that flags.
	VarianceThreshold float64 `mapstructure:"variance_threshold" yaml:"variance_threshold"`
	ConfidencePairGap float64 `mapstructure:"confidence_pair_gap" yaml:"confidence_pair_gap"`

	// Alert thresholds.
	LowConfidence           float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	SevereConfidence        float64 `mapstructure:"severe_confidence" yaml:"severe_confidence"`
	ContradictionAlertCount int     `mapstructure:"contradiction_alert_count" yaml:"contradiction_alert_count"`
	CoherenceWarn           float64 `mapstructure:"coherence_warn" yaml:"coherence_warn"`
	CoherenceCritical       float64 `mapstructure:"coherence_critical" yaml:"coherence_critical"`
	OrphanAlertCount        int     `mapstructure:"orphan_alert_count" yaml:"orphan_alert_count"`

	// TrendEpsilon is the weighted-delta band inside which the health trend
	// is reported stable.
	TrendEpsilon float64 `mapstructure:"trend_epsilon" yaml:"trend_epsilon"`

	// Health summary bands.
	SummaryWarnCoherence       float64 `mapstructure:"summary_warn_coherence" yaml:"summary_warn_coherence"`
	SummaryExcellentCoherence  float64 `mapstructure:"summary_excellent_coherence" yaml:"summary_excellent_coherence"`
	SummaryExcellentConfidence float64 `mapstructure:"summary_excellent_confidence" yaml:"summary_excellent_confidence"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:      0.7,
		DiversityCeiling:         10,
		ContradictionConfidence:  0.7,
		DriftSlope:               0.1,
		ChainGap:                 6 * time.Hour,
		ChainScoreFloor:          0.3,
		EpisodicConfidenceFloor:  0.3,
		RichTextLength:           50,
		RichStructuredKeys:       2,
		CausalWindow:             24 * time.Hour,
		CausalConfidence:         0.6,
		CausalDelay:              30 * time.Minute,
		PatternStep:              0.1,
		PatternFloor:             0.3,
		NarrativeConfidenceFloor: 0.5,
		NarrativeMinTags:         1,
		KeyMomentConfidence:      0.8,
		OrphanAge:                30 * 24 * time.Hour,
		VarianceThreshold:        0.3,
		ConfidencePairGap:        0.5,
		LowConfidence:            0.5,
		SevereConfidence:         0.3,
		ContradictionAlertCount:  3,
		CoherenceWarn:            0.7,
		CoherenceCritical:        0.5,
		OrphanAlertCount:         10,
		TrendEpsilon:             0.05,

		SummaryWarnCoherence:       0.6,
		SummaryExcellentCoherence:  0.8,
		SummaryExcellentConfidence: 0.7,
	}
}

// Validate checks every threshold is in its legal range.
func (c Config) Validate() error {
	unit := []struct {
		name  string
		value float64
	}{
		{"similarity_threshold", c.SimilarityThreshold},
		{"contradiction_confidence", c.ContradictionConfidence},
		{"chain_score_floor", c.ChainScoreFloor},
		{"episodic_confidence_floor", c.EpisodicConfidenceFloor},
		{"causal_confidence", c.CausalConfidence},
		{"pattern_step", c.PatternStep},
		{"pattern_floor", c.PatternFloor},
		{"narrative_confidence_floor", c.NarrativeConfidenceFloor},
		{"key_moment_confidence", c.KeyMomentConfidence},
		{"confidence_pair_gap", c.ConfidencePairGap},
		{"low_confidence", c.LowConfidence},
		{"severe_confidence", c.SevereConfidence},
		{"coherence_warn", c.CoherenceWarn},
		{"coherence_critical", c.CoherenceCritical},
		{"summary_warn_coherence", c.SummaryWarnCoherence},
		{"summary_excellent_coherence", c.SummaryExcellentCoherence},
		{"summary_excellent_confidence", c.SummaryExcellentConfidence},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", u.name, u.value)
		}
	}

	if c.DiversityCeiling <= 0 {
		return fmt.Errorf("diversity_ceiling must be positive, got %d", c.DiversityCeiling)
	}
	if c.ChainGap <= 0 {
		return fmt.Errorf("chain_gap must be positive, got %v", c.ChainGap)
	}
	if c.CausalWindow <= 0 {
		return fmt.Errorf("causal_window must be positive, got %v", c.CausalWindow)
	}
	if c.CausalDelay < 0 {
		return fmt.Errorf("causal_delay must be non-negative, got %v", c.CausalDelay)
	}
	if c.OrphanAge <= 0 {
		return fmt.Errorf("orphan_age must be positive, got %v", c.OrphanAge)
	}
	if c.VarianceThreshold < 0 {
		return fmt.Errorf("variance_threshold must be non-negative, got %v", c.VarianceThreshold)
	}
	if c.TrendEpsilon < 0 {
		return fmt.Errorf("trend_epsilon must be non-negative, got %v", c.TrendEpsilon)
	}
	return nil
}
