package memory

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database with the engine schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open test database")
	// A single connection keeps every statement on the same in-memory DB.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS concept_clusters (
			id TEXT PRIMARY KEY,
			central_concept TEXT NOT NULL,
			related_concepts TEXT NOT NULL,
			member_fragments TEXT NOT NULL,
			cluster_strength REAL NOT NULL DEFAULT 0,
			temporal_evolution TEXT NOT NULL,
			narrative_themes TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS concept_evolutions (
			concept TEXT PRIMARY KEY,
			timestamps TEXT NOT NULL,
			confidences TEXT NOT NULL,
			fragment_ids TEXT NOT NULL,
			contexts TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS concept_contradictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			concept TEXT NOT NULL,
			fragment_a TEXT NOT NULL,
			fragment_b TEXT NOT NULL,
			contradiction_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			detected_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS episodic_chains (
			id TEXT PRIMARY KEY,
			members TEXT NOT NULL,
			narrative_arc TEXT,
			span_start TEXT NOT NULL,
			span_end TEXT NOT NULL,
			causal_count INTEGER NOT NULL DEFAULT 0,
			significance REAL NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS causal_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cause_id TEXT NOT NULL,
			effect_id TEXT NOT NULL,
			relationship TEXT NOT NULL,
			confidence REAL NOT NULL,
			temporal_delay_sec INTEGER NOT NULL,
			detected_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS temporal_patterns (
			id TEXT PRIMARY KEY,
			pattern_type TEXT NOT NULL,
			fragment_ids TEXT NOT NULL,
			signature TEXT NOT NULL,
			confidence REAL NOT NULL,
			last_occurrence TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS narrative_arcs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			fragment_ids TEXT NOT NULL,
			key_moments TEXT NOT NULL,
			themes TEXT NOT NULL,
			emotional_trajectory TEXT NOT NULL,
			resolution_status TEXT NOT NULL,
			significance REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS drift_alerts (
			id TEXT PRIMARY KEY,
			drift_type TEXT NOT NULL,
			affected TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			recommended_action TEXT NOT NULL,
			detected_at TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			resolution_note TEXT
		);

		CREATE TABLE IF NOT EXISTS health_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			total_fragments INTEGER NOT NULL,
			total_clusters INTEGER NOT NULL,
			average_confidence REAL NOT NULL,
			contradiction_count INTEGER NOT NULL,
			orphaned_fragments INTEGER NOT NULL,
			coherence_score REAL NOT NULL,
			health_trend TEXT NOT NULL,
			taken_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err, "failed to create schema")

	return db
}

// textFragment builds an episodic text fragment for tests.
func textFragment(id, text string, tags []string, confidence float64, createdAt time.Time) Fragment {
	return Fragment{
		ID:         id,
		Content:    Content{Text: text},
		Tags:       tags,
		Confidence: confidence,
		CreatedAt:  createdAt,
		Type:       FragmentEpisodic,
	}
}
