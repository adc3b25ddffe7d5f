package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestClusterManager(t *testing.T) *ClusterManager {
	t.Helper()
	return NewClusterManager(setupTestDB(t), nil, DefaultConfig())
}

func TestSharedTagFragmentsFormOneCluster(t *testing.T) {
	m := newTestClusterManager(t)
	ctx := context.Background()

	fragA := textFragment("frag-a", "", []string{"performance"}, 0.6, testBase)
	fragB := textFragment("frag-b", "", []string{"performance", "database"}, 0.8, testBase.Add(time.Hour))

	_, err := m.ProcessNewFragment(ctx, fragA)
	require.NoError(t, err)
	affected, err := m.ProcessNewFragment(ctx, fragB)
	require.NoError(t, err)
	require.NotEmpty(t, affected)

	clusters := m.GetConceptClusters(0)
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.Equal(t, []string{"frag-a", "frag-b"}, c.MemberFragments)
	assert.Contains(t, c.RelatedConcepts, "performance")
	assert.Contains(t, c.RelatedConcepts, "database")
	assert.Greater(t, c.ClusterStrength, 0.0)
	assert.LessOrEqual(t, c.ClusterStrength, 1.0)
	assert.Len(t, c.TemporalEvolution, 2)
}

func TestClusterAssignmentOrderIndependent(t *testing.T) {
	ctx := context.Background()
	f1 := textFragment("frag-1", "", []string{"database", "performance"}, 0.7, testBase)
	f2 := textFragment("frag-2", "", []string{"database", "optimization"}, 0.8, testBase.Add(time.Hour))

	forward := newTestClusterManager(t)
	_, err := forward.ProcessNewFragment(ctx, f1)
	require.NoError(t, err)
	_, err = forward.ProcessNewFragment(ctx, f2)
	require.NoError(t, err)

	// Swap the fragments' tag sets by feeding them in the opposite order.
	reverse := newTestClusterManager(t)
	_, err = reverse.ProcessNewFragment(ctx, textFragment("frag-2", "", []string{"database", "optimization"}, 0.8, testBase))
	require.NoError(t, err)
	_, err = reverse.ProcessNewFragment(ctx, textFragment("frag-1", "", []string{"database", "performance"}, 0.7, testBase.Add(time.Hour)))
	require.NoError(t, err)

	fwd := forward.GetConceptClusters(0)
	rev := reverse.GetConceptClusters(0)
	require.Len(t, fwd, 1)
	require.Len(t, rev, 1)
	assert.Equal(t, fwd[0].ID, rev[0].ID)
	assert.Equal(t, fwd[0].RelatedConcepts, rev[0].RelatedConcepts)
	assert.ElementsMatch(t, fwd[0].MemberFragments, rev[0].MemberFragments)
}

func TestSimilarityAttachment(t *testing.T) {
	m := newTestClusterManager(t)
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "", []string{"alpha", "beta", "gamma"}, 0.7, testBase))
	require.NoError(t, err)
	require.Len(t, m.GetConceptClusters(0), 1)

	// Concept "delta" has no direct match but its tag overlap clears the
	// similarity threshold (3/4 >= 0.7), so no second cluster appears.
	_, err = m.ProcessNewFragment(ctx, textFragment("frag-2", "delta", []string{"alpha", "beta", "gamma"}, 0.8, testBase.Add(time.Hour)))
	require.NoError(t, err)
	clusters := m.GetConceptClusters(0)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"frag-1", "frag-2"}, clusters[0].MemberFragments)

	// Disjoint concepts fall through both passes and seed their own cluster.
	_, err = m.ProcessNewFragment(ctx, textFragment("frag-3", "epsilon", []string{"zeta"}, 0.8, testBase.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Len(t, m.GetConceptClusters(0), 2)
}

func TestNewClusterIDIsConceptSlug(t *testing.T) {
	m := newTestClusterManager(t)
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "", []string{"user login"}, 0.7, testBase))
	require.NoError(t, err)

	clusters := m.GetConceptClusters(0)
	require.Len(t, clusters, 1)
	assert.Equal(t, "cluster_user-login", clusters[0].ID)
	assert.Equal(t, "user login", clusters[0].CentralConcept)
}

func TestLexicalContradictionAcrossFragments(t *testing.T) {
	m := newTestClusterManager(t)
	m.nowFn = func() time.Time { return testBase.Add(2 * time.Hour) }
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "it works", []string{"deploy"}, 0.8, testBase))
	require.NoError(t, err)
	require.Empty(t, m.GetRecentContradictions(1))

	_, err = m.ProcessNewFragment(ctx, textFragment("frag-2", "it is broken", []string{"deploy"}, 0.6, testBase.Add(time.Hour)))
	require.NoError(t, err)

	contradictions := m.GetRecentContradictions(1)
	require.Len(t, contradictions, 1)
	c := contradictions[0]
	assert.Equal(t, "deploy", c.Concept)
	assert.Equal(t, "frag-2", c.FragmentA)
	assert.Equal(t, "frag-1", c.FragmentB)
	assert.Equal(t, "semantic", c.Type)
	assert.InDelta(t, 0.7, c.Confidence, 1e-12)
	assert.True(t, c.DetectedAt.Equal(testBase.Add(time.Hour)))
}

func TestLexicalContradictionWithinFragment(t *testing.T) {
	m := newTestClusterManager(t)
	m.nowFn = func() time.Time { return testBase }
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "it works but broken", []string{"status"}, 0.5, testBase))
	require.NoError(t, err)

	contradictions := m.GetRecentContradictions(1)
	require.NotEmpty(t, contradictions)
	for _, c := range contradictions {
		assert.Equal(t, "frag-1", c.FragmentA)
		assert.Equal(t, "frag-1", c.FragmentB)
		assert.Equal(t, "semantic", c.Type)
		assert.InDelta(t, 0.7, c.Confidence, 1e-12)
	}
}

func TestClusterAndEvolutionInvariants(t *testing.T) {
	m := newTestClusterManager(t)
	ctx := context.Background()

	frags := []Fragment{
		textFragment("frag-1", "the cache layer is slow", []string{"cache", "latency"}, 0.4, testBase),
		textFragment("frag-2", "warmed the cache", []string{"cache"}, 0.9, testBase.Add(time.Hour)),
		textFragment("frag-3", "", []string{"latency", "network"}, 0.6, testBase.Add(2*time.Hour)),
		textFragment("frag-4", "network partition observed", nil, 0.7, testBase.Add(3*time.Hour)),
	}
	for _, f := range frags {
		_, err := m.ProcessNewFragment(ctx, f)
		require.NoError(t, err)
	}

	for _, c := range m.GetConceptClusters(0) {
		assert.NotEmpty(t, c.CentralConcept)
		assert.NotEmpty(t, c.MemberFragments)
		assert.GreaterOrEqual(t, c.ClusterStrength, 0.0)
		assert.LessOrEqual(t, c.ClusterStrength, 1.0)
		assert.Len(t, c.TemporalEvolution, len(c.MemberFragments))
	}

	for concept, ev := range m.evolutions {
		assert.Len(t, ev.Confidences, len(ev.Timestamps), "concept %s", concept)
		assert.Len(t, ev.FragmentIDs, len(ev.Timestamps), "concept %s", concept)
		assert.Len(t, ev.Contexts, len(ev.Timestamps), "concept %s", concept)
	}
}

func TestGetConceptEvolution(t *testing.T) {
	m := newTestClusterManager(t)
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "", []string{"alpha"}, 0.6, testBase))
	require.NoError(t, err)

	ev, err := m.GetConceptEvolution("ALPHA")
	require.NoError(t, err)
	assert.Equal(t, "alpha", ev.Concept)
	assert.Equal(t, []string{"frag-1"}, ev.FragmentIDs)
	assert.Equal(t, []string{"experience"}, ev.Contexts)

	_, err = m.GetConceptEvolution("unknown")
	assert.True(t, IsNotFound(err))
}

func TestAnalyzeConceptDrift(t *testing.T) {
	m := newTestClusterManager(t)
	m.nowFn = func() time.Time { return testBase }
	ctx := context.Background()

	_, err := m.ProcessNewFragment(ctx, textFragment("frag-1", "", []string{"cache"}, 0.2, testBase.Add(-2*time.Hour)))
	require.NoError(t, err)
	_, err = m.ProcessNewFragment(ctx, textFragment("frag-2", "", []string{"cache"}, 0.9, testBase.Add(-time.Hour)))
	require.NoError(t, err)

	drift, err := m.AnalyzeConceptDrift("cache", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, drift.RecentOccurrences)
	assert.Equal(t, "increasing", drift.ConfidenceTrend)
	assert.InDelta(t, 0.55, drift.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.5, drift.ContextDiversity, 1e-9)

	// No data points inside a narrow window.
	_, err = m.AnalyzeConceptDrift("cache", 30*time.Minute)
	assert.True(t, IsNotFound(err))

	_, err = m.AnalyzeConceptDrift("missing", 24*time.Hour)
	assert.True(t, IsNotFound(err))
}

func TestReplayDeterminism(t *testing.T) {
	ctx := context.Background()
	sequence := []Fragment{
		textFragment("frag-1", "the deploy went fine", []string{"deploy", "release"}, 0.7, testBase),
		textFragment("frag-2", "", []string{"release", "rollback"}, 0.4, testBase.Add(time.Hour)),
		textFragment("frag-3", "rollback cleaned up", []string{"rollback"}, 0.9, testBase.Add(2*time.Hour)),
		textFragment("frag-4", "", []string{"deploy"}, 0.6, testBase.Add(3*time.Hour)),
	}

	dbA := setupTestDB(t)
	first := NewClusterManager(dbA, nil, DefaultConfig())
	second := newTestClusterManager(t)
	for _, f := range sequence {
		_, err := first.ProcessNewFragment(ctx, f)
		require.NoError(t, err)
		_, err = second.ProcessNewFragment(ctx, f)
		require.NoError(t, err)
	}
	assert.Equal(t, first.GetConceptClusters(0), second.GetConceptClusters(0))

	// A cold reload of the first store reproduces the same state.
	reloaded := NewClusterManager(dbA, nil, DefaultConfig())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, first.GetConceptClusters(0), reloaded.GetConceptClusters(0))

	evA, err := first.GetConceptEvolution("deploy")
	require.NoError(t, err)
	evB, err := reloaded.GetConceptEvolution("deploy")
	require.NoError(t, err)
	assert.Equal(t, evA, evB)
}

func TestLoadExcludesCorruptRecords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO concept_clusters VALUES
			('cluster_good', 'good', '["good"]', '["frag-1"]', 0.5, '[]', '["experience"]', '2026-03-01T10:00:00Z'),
			('cluster_bad', 'bad', '["bad"]', '["frag-2"]', 5.0, '[]', '["experience"]', '2026-03-01T10:00:00Z'),
			('cluster_empty', 'empty', '["empty"]', '[]', 0.5, '[]', '["experience"]', '2026-03-01T10:00:00Z')
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO concept_evolutions VALUES
			('good', '["2026-03-01T10:00:00Z"]', '[0.5]', '["frag-1"]', '["experience"]'),
			('ragged', '["2026-03-01T10:00:00Z"]', '[0.5, 0.6]', '["frag-2"]', '["experience"]')
	`)
	require.NoError(t, err)

	m := NewClusterManager(db, nil, DefaultConfig())
	require.NoError(t, m.Load(ctx))

	clusters := m.GetConceptClusters(0)
	require.Len(t, clusters, 1)
	assert.Equal(t, "cluster_good", clusters[0].ID)

	_, err = m.GetConceptEvolution("good")
	assert.NoError(t, err)
	_, err = m.GetConceptEvolution("ragged")
	assert.True(t, IsNotFound(err))
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	m := NewClusterManager(db, nil, DefaultConfig())
	require.NoError(t, db.Close())

	_, err := m.ProcessNewFragment(context.Background(), textFragment("frag-1", "", []string{"alpha"}, 0.6, testBase))
	require.Error(t, err)
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))

	assert.Empty(t, m.GetConceptClusters(0))
	assert.Empty(t, m.evolutions)
	assert.Empty(t, m.GetRecentContradictions(1))
}

func TestClusterStrengthFormula(t *testing.T) {
	assert.InDelta(t, 0.0, clusterStrength(0, 0, 10), 1e-9)
	// One member, one related concept.
	assert.InDelta(t, 0.30103*0.55, clusterStrength(1, 1, 10), 1e-4)
	// Size term saturates at nine members, diversity at the ceiling.
	assert.InDelta(t, 1.0, clusterStrength(9, 10, 10), 1e-9)
	assert.InDelta(t, 1.0, clusterStrength(500, 40, 10), 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 0.0, jaccard(nil, nil), 1e-12)
	assert.InDelta(t, 1.0, jaccard([]string{"a", "b"}, []string{"a", "b"}), 1e-12)
	assert.InDelta(t, 0.75, jaccard([]string{"a", "b", "c", "d"}, []string{"a", "b", "c"}), 1e-12)
	assert.InDelta(t, 0.0, jaccard([]string{"a"}, []string{"b"}), 1e-12)
}
