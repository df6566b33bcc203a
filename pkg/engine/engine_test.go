package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocolabs/coco/pkg/config"
	"github.com/cocolabs/coco/pkg/extract"
	"github.com/cocolabs/coco/pkg/memory"
)

func factCandidate(i int) extract.FactCandidate {
	return extract.FactCandidate{
		Type:       extract.FactDecision,
		Content:    fmt.Sprintf("decided to ship milestone %d", i),
		Importance: 0.7,
	}
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *memory.MemoryDB) {
	t.Helper()
	db, err := memory.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng, err := New(config.DefaultConfig(), db, opts)
	require.NoError(t, err)
	return eng, db
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, []string) (string, error) {
	return "", errors.New("model unavailable")
}

func failingEstimator(string) (int, error) {
	return 0, errors.New("tokenizer unavailable")
}

func TestRecordExchangeStats(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	stats, err := eng.RecordExchange(context.Background(),
		"Keith Lambert works with Sarah on the COCO project using Python",
		"Noted. I decided to keep the current schedule.")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats.EntitiesAdded, 4, "Keith Lambert, Sarah, COCO, Python")
	assert.GreaterOrEqual(t, stats.RelationshipsAdded, 2, "WORKS_WITH and USES")

	st, err := eng.KnowledgeStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalEpisodes)
	assert.GreaterOrEqual(t, st.TotalNodes, 4)
	assert.GreaterOrEqual(t, st.TotalMentions, 4)
}

func TestRecordExchangeRejectsFragments(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	stats, err := eng.RecordExchange(context.Background(), "not just through these", "ok")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EntitiesAdded)
	assert.Equal(t, 0, stats.RelationshipsAdded)
}

// After enough exchanges the buffer must stay bounded and a full window
// minus overlap must be compressed away.
func TestBufferStaysBounded(t *testing.T) {
	eng, db := newTestEngine(t, Options{})
	cfg := eng.cfg.Memory

	for i := 0; i < cfg.BufferTruncateAt+10; i++ {
		_, err := eng.RecordExchange(context.Background(),
			fmt.Sprintf("routine question %d", i),
			fmt.Sprintf("routine answer %d.", i))
		require.NoError(t, err)
	}

	bufferLen, err := db.LiveBufferLen()
	require.NoError(t, err)
	assert.LessOrEqual(t, bufferLen, cfg.BufferTruncateAt)

	summarized, err := db.SummarizedCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summarized, cfg.SummaryWindowSize-cfg.SummaryOverlap)

	count, err := db.SummaryCount()
	require.NoError(t, err)
	assert.Greater(t, count, 0)
	assert.LessOrEqual(t, count, cfg.MaxSummariesInMemory)
}

// A failing summarizer must leave episodes unsummarized so a later cycle
// can retry them, never drop them.
func TestSummarizerFailureLeavesEpisodesForRetry(t *testing.T) {
	eng, db := newTestEngine(t, Options{Summarizer: failingSummarizer{}})

	for i := 0; i < 30; i++ {
		_, err := eng.RecordExchange(context.Background(),
			fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d.", i))
		require.NoError(t, err)
	}

	summarized, err := db.SummarizedCount()
	require.NoError(t, err)
	assert.Equal(t, 0, summarized, "failed summarization must not mark episodes")

	bufferLen, err := db.LiveBufferLen()
	require.NoError(t, err)
	assert.Equal(t, 30, bufferLen)

	// A recovered summarizer picks the same episodes up again.
	recovered, err := New(eng.cfg, db, Options{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := recovered.RecordExchange(context.Background(),
			fmt.Sprintf("later question %d", i), fmt.Sprintf("later answer %d.", i))
		require.NoError(t, err)
	}

	summarized, err = db.SummarizedCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summarized, 20)
}

func TestContextForTurnLowZone(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	_, err := eng.RecordExchange(context.Background(),
		"We decided to migrate the database this weekend",
		"Understood.")
	require.NoError(t, err)

	tc, err := eng.ContextForTurn(context.Background(), "what did we decide")
	require.NoError(t, err)
	assert.Equal(t, ZoneLow, tc.Zone)
	assert.LessOrEqual(t, len(tc.Summaries), 3)
	assert.LessOrEqual(t, len(tc.Facts), 5)
}

func TestContextForTurnHighPressure(t *testing.T) {
	eng, db := newTestEngine(t, Options{})
	eng.cfg.Pressure.ContextWindowLimit = 100 // tiny window to force emergency

	for i := 0; i < 5; i++ {
		_, err := eng.RecordExchange(context.Background(),
			strings.Repeat("long conversational filler ", 10),
			"short answer.")
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := db.StoreFact(factCandidate(i))
		require.NoError(t, err)
	}

	tc, err := eng.ContextForTurn(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, ZoneEmergency, tc.Zone)
	assert.LessOrEqual(t, len(tc.Facts), 1, "emergency zone injects at most one fact")
}

func TestContextForTurnTokenizerFailureDefaultsLow(t *testing.T) {
	eng, db := newTestEngine(t, Options{EstimateTokens: failingEstimator})
	eng.cfg.Pressure.ContextWindowLimit = 100

	// A stored summary forces the pressure path through the estimator.
	_, err := db.InsertSummary("a long stretch of prior conversation", 1, 25, 25, 0.6)
	require.NoError(t, err)

	tc, err := eng.ContextForTurn(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, ZoneLow, tc.Zone, "unknown pressure must fail open to maximum capacity")
}

func TestAttachDocumentSmallInjectedWhole(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	require.NoError(t, eng.AttachDocument("notes.md", "short reference document"))

	tc, err := eng.ContextForTurn(context.Background(), "reference")
	require.NoError(t, err)
	require.Len(t, tc.Documents, 1)
	assert.False(t, tc.Documents[0].Partial)
	assert.Equal(t, "short reference document", tc.Documents[0].Content)
}

func TestAttachDocumentLargeUsesRankedChunks(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	eng.cfg.Documents.SmallTokenThreshold = 10

	var b strings.Builder
	for i := 0; i < 200; i++ {
		if i == 150 {
			b.WriteString("the migration runbook lives here ")
		}
		b.WriteString("unrelated filler text for padding the document body ")
	}
	require.NoError(t, eng.AttachDocument("big.md", b.String()))

	tc, err := eng.ContextForTurn(context.Background(), "migration runbook")
	require.NoError(t, err)
	require.Len(t, tc.Documents, 1)
	assert.True(t, tc.Documents[0].Partial)
	assert.Contains(t, tc.Documents[0].Content, "migration runbook")
	assert.Less(t, len(tc.Documents[0].Content), b.Len())
}

// Under sustained high pressure the zone's buffer budget must force
// compression where the fixed thresholds alone would leave the buffer
// untouched.
func TestHighPressureShrinksBuffer(t *testing.T) {
	low, lowDB := newTestEngine(t, Options{})
	high, highDB := newTestEngine(t, Options{})
	high.cfg.Pressure.ContextWindowLimit = 50 // tiny window, emergency almost immediately

	for i := 0; i < 26; i++ {
		_, err := low.RecordExchange(context.Background(),
			fmt.Sprintf("routine note %d", i), "ok.")
		require.NoError(t, err)
		_, err = high.RecordExchange(context.Background(),
			fmt.Sprintf("routine note %d", i), "ok.")
		require.NoError(t, err)
	}

	lowBuf, err := lowDB.LiveBufferLen()
	require.NoError(t, err)
	assert.Equal(t, 26, lowBuf, "low pressure leaves the buffer below every threshold")

	lowSummarized, err := lowDB.SummarizedCount()
	require.NoError(t, err)
	assert.Equal(t, 0, lowSummarized)

	highBuf, err := highDB.LiveBufferLen()
	require.NoError(t, err)
	assert.LessOrEqual(t, highBuf, ZoneFor(100).BufferSize,
		"emergency pressure compresses down to the zone's buffer budget")

	highSummarized, err := highDB.SummarizedCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, highSummarized, 20)
}

func TestContextEpisodesCappedByZone(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	for i := 0; i < 15; i++ {
		_, err := eng.RecordExchange(context.Background(),
			fmt.Sprintf("note %d", i), "ok.")
		require.NoError(t, err)
	}

	tc, err := eng.ContextForTurn(context.Background(), "recap")
	require.NoError(t, err)
	assert.Equal(t, ZoneLow, tc.Zone)
	assert.Len(t, tc.Episodes, 15, "low zone carries the whole small buffer")

	squeezed, db := newTestEngine(t, Options{})
	squeezed.cfg.Pressure.ContextWindowLimit = 50
	for i := 0; i < 12; i++ {
		_, err := squeezed.RecordExchange(context.Background(),
			fmt.Sprintf("note %d", i), "ok.")
		require.NoError(t, err)
	}

	bufferLen, err := db.LiveBufferLen()
	require.NoError(t, err)
	require.Equal(t, 12, bufferLen, "no full window yet, nothing compressed")

	tc, err = squeezed.ContextForTurn(context.Background(), "recap")
	require.NoError(t, err)
	assert.Equal(t, ZoneEmergency, tc.Zone)
	assert.Len(t, tc.Episodes, ZoneFor(100).BufferSize,
		"emergency zone caps the live exchanges injected")
}

func TestTruncateSummariesKeepsValidUTF8(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	// 300 bytes of 3-byte runes against a 100-byte budget lands mid-rune.
	sums := []memory.Summary{{Content: strings.Repeat("你好", 50)}}
	out := eng.truncateSummaries(sums, 25)

	require.Len(t, out, 1)
	assert.True(t, utf8.ValidString(out[0]), "truncation must not split a rune")
	assert.Less(t, len(out[0]), 100+utf8.UTFMax)
	assert.Greater(t, len(out[0]), 0)
}

func TestSearchFactsUsesConfiguredLimit(t *testing.T) {
	eng, db := newTestEngine(t, Options{})
	eng.cfg.Facts.SearchLimit = 2

	for i := 0; i < 4; i++ {
		_, err := db.StoreFact(factCandidate(i))
		require.NoError(t, err)
	}

	results, err := eng.SearchFacts("milestone")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestProactiveIntervalZeroDisablesCadence(t *testing.T) {
	eng, db := newTestEngine(t, Options{})
	eng.cfg.Memory.ProactiveInterval = 0

	for i := 0; i < 30; i++ {
		_, err := eng.RecordExchange(context.Background(),
			fmt.Sprintf("note %d", i), "ok.")
		require.NoError(t, err)
	}

	bufferLen, err := db.LiveBufferLen()
	require.NoError(t, err)
	assert.Equal(t, 30, bufferLen)
}
