package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEpisodes(t *testing.T, db *MemoryDB, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := db.AppendEpisode(
			fmt.Sprintf("user message %d", i),
			fmt.Sprintf("assistant reply %d", i),
			50,
		)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestEpisodeLifecycle(t *testing.T) {
	db := openTestDB(t)
	ids := seedEpisodes(t, db, 30)

	n, err := db.LiveBufferLen()
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	oldest, err := db.OldestUnsummarized(25)
	require.NoError(t, err)
	require.Len(t, oldest, 25)
	assert.Equal(t, ids[0], oldest[0].ID)
	assert.Equal(t, ids[24], oldest[24].ID)

	window := make([]int64, 0, 25)
	for _, ep := range oldest {
		window = append(window, ep.ID)
	}
	require.NoError(t, db.MarkSummarized(window, "compressed window"))

	n, err = db.LiveBufferLen()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	summarized, err := db.SummarizedCount()
	require.NoError(t, err)
	assert.Equal(t, 25, summarized)

	remaining, err := db.OldestUnsummarized(100)
	require.NoError(t, err)
	require.Len(t, remaining, 5)
	for _, ep := range remaining {
		assert.False(t, ep.Summarized)
		assert.Equal(t, 0, ep.CompressionLevel)
	}
}

func TestSummaryEviction(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 55; i++ {
		_, err := db.InsertSummary(fmt.Sprintf("summary %d", i), int64(i*25+1), int64(i*25+25), 25, 0.5)
		require.NoError(t, err)
	}

	evicted, err := db.EvictOldestSummaries(50)
	require.NoError(t, err)
	assert.Equal(t, 5, evicted)

	count, err := db.SummaryCount()
	require.NoError(t, err)
	assert.Equal(t, 50, count)

	// Oldest were the ones removed
	recent, err := db.RecentSummaries(50)
	require.NoError(t, err)
	for _, s := range recent {
		assert.NotEqual(t, "summary 0", s.Content)
		assert.NotEqual(t, "summary 4", s.Content)
	}
}

func TestCollapseIntoGist(t *testing.T) {
	db := openTestDB(t)
	seedEpisodes(t, db, 50)

	var summaries []Summary
	for i := 0; i < 4; i++ {
		start := int64(i*10 + 1)
		end := int64(i*10 + 10)
		id, err := db.InsertSummary(fmt.Sprintf("window %d", i), start, end, 10, 0.6)
		require.NoError(t, err)
		summaries = append(summaries, Summary{
			ID: id, StartEpisodeID: start, EndEpisodeID: end, EpisodeCount: 10, Importance: 0.6,
		})
	}

	gistID, err := db.CollapseIntoGist("a month of project work", summaries)
	require.NoError(t, err)
	require.NotEmpty(t, gistID)

	count, err := db.SummaryCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "collapsed summaries replaced by one gist")

	recent, err := db.RecentSummaries(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	gist := recent[0]
	assert.True(t, gist.IsGist)
	assert.Equal(t, int64(1), gist.StartEpisodeID)
	assert.Equal(t, int64(40), gist.EndEpisodeID)
	assert.Equal(t, 40, gist.EpisodeCount)
	assert.InDelta(t, 0.6, gist.Importance, 0.001)
}

func TestRecordContextBuild(t *testing.T) {
	db := openTestDB(t)

	err := db.RecordContextBuild("what did we decide", 72.5, "high", 3, 3, 1, 4200)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM context_builds").Scan(&n))
	assert.Equal(t, 1, n)
}
