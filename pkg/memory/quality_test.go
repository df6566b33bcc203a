package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocolabs/coco/pkg/extract"
)

func testValidator(t *testing.T) *extract.Validator {
	t.Helper()
	rules := extract.DefaultRules()
	require.NoError(t, rules.Compile())
	return extract.NewValidator(rules)
}

// Stores can accumulate nodes an older, looser ruleset let through. Seed a
// mix of valid and invalid nodes directly, then check re-validation flags
// only the bad ones.
func seedMixedNodes(t *testing.T, db *MemoryDB) {
	t.Helper()
	valid := []extract.Entity{
		{Name: "Keith Lambert", Type: extract.EntityPerson, Confidence: 0.9},
		{Name: "Kubernetes", Type: extract.EntityTool, Confidence: 0.8},
	}
	invalid := []extract.Entity{
		{Name: "the", Type: extract.EntityPerson, Confidence: 0.9},
		{Name: "working Sarah", Type: extract.EntityPerson, Confidence: 0.9},
		{Name: "x", Type: extract.EntityTool, Confidence: 0.5},
	}
	for _, e := range append(valid, invalid...) {
		_, err := db.UpsertEntity(e)
		require.NoError(t, err)
	}
}

func TestAnalyzeQualityIssues(t *testing.T) {
	db := openTestDB(t)
	seedMixedNodes(t, db)

	report, err := db.AnalyzeQualityIssues(testValidator(t))
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalNodes)
	assert.Equal(t, 2, report.ValidNodes)
	require.Len(t, report.Issues, 3)
	assert.Equal(t, 1, report.ByReason[extract.RejectStopWord])
	assert.Equal(t, 1, report.ByReason[extract.RejectFragment])
	assert.Equal(t, 1, report.ByReason[extract.RejectNoise])
}

func TestOptimizeDryRunMutatesNothing(t *testing.T) {
	db := openTestDB(t)
	seedMixedNodes(t, db)

	out, err := db.Optimize(testValidator(t), true)
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.Equal(t, 3, out.NodesRemoved)

	nodes, err := db.AllNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 5, "dry run must not delete anything")
}

func TestOptimizeRemovesOnlyInvalidNodes(t *testing.T) {
	db := openTestDB(t)
	seedMixedNodes(t, db)

	// Attach an edge and a mention to an invalid node so cascades are exercised
	badID, ok := db.ResolveAlias("the")
	require.True(t, ok)
	goodID, ok := db.ResolveAlias("Keith Lambert")
	require.True(t, ok)
	_, err := db.db.Exec(
		`INSERT INTO edges (source_id, target_id, type, weight, first_seen, last_seen)
		 VALUES (?, ?, 'WORKS_WITH', 0.5, ?, ?)`,
		badID, goodID, nowString(), nowString(),
	)
	require.NoError(t, err)
	require.NoError(t, db.RecordMention(badID, 1, "the", "", 0.9))

	out, err := db.Optimize(testValidator(t), false)
	require.NoError(t, err)
	assert.False(t, out.DryRun)
	assert.Equal(t, 3, out.NodesRemoved)

	nodes, err := db.AllNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Equal(t, extract.RejectNone, testValidator(t).Classify(n.Name, n.Type))
	}

	// Cascades cleaned up the dangling edge and mention
	st, err := db.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalEdges)
	assert.Equal(t, 0, st.TotalMentions)
}
