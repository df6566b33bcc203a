package engine

import (
	"context"

	"github.com/cocolabs/coco/pkg/memory"
)

// maybeCompress runs the compression checks after an exchange: hard
// truncation when the buffer exceeds its absolute limit, a pressure-driven
// pass when the buffer exceeds the current zone's size budget, plus a
// proactive pass on a fixed cadence so compression work is smoothed
// instead of spiking at the threshold. Caller holds the engine mutex.
func (e *Engine) maybeCompress(ctx context.Context) {
	mem := e.cfg.Memory

	bufferLen, err := e.db.LiveBufferLen()
	if err != nil {
		e.log.Warn().Err(err).Msg("buffer length check failed, skipping compression")
		return
	}

	limits := ZoneFor(e.currentPressure())

	switch {
	case bufferLen > mem.BufferTruncateAt:
		e.summarizeOldestWindow(ctx)
	case bufferLen > limits.BufferSize:
		// The zone's buffer budget shrinks under pressure; compress down
		// toward it as soon as a full window is available.
		e.summarizeOldestWindow(ctx)
	case mem.ProactiveInterval > 0 && e.exchangeCount%mem.ProactiveInterval == 0 && bufferLen > mem.ProactiveMinBuffer:
		e.summarizeOldestWindow(ctx)
	}
}

// summarizeOldestWindow compresses the oldest window of live episodes into
// one summary. The trailing overlap episodes stay unsummarized so they are
// carried into the next window for continuity. On summarizer failure
// nothing is marked: the same episodes are retried on the next cycle.
func (e *Engine) summarizeOldestWindow(ctx context.Context) {
	mem := e.cfg.Memory

	window, err := e.db.OldestUnsummarized(mem.SummaryWindowSize)
	if err != nil {
		e.log.Warn().Err(err).Msg("window fetch failed, skipping compression")
		return
	}
	if len(window) < mem.SummaryWindowSize {
		return
	}

	texts := make([]string, len(window))
	for i, ep := range window {
		texts[i] = "User: " + ep.UserText + "\nAssistant: " + ep.AssistantText
	}

	content, err := e.summarizer.Summarize(ctx, texts)
	if err != nil {
		e.log.Warn().Err(err).Msg("summarization failed, episodes kept for retry")
		return
	}

	importance := e.windowImportance(window)
	if _, err := e.db.InsertSummary(content, window[0].ID, window[len(window)-1].ID, len(window), importance); err != nil {
		e.log.Warn().Err(err).Msg("summary write failed, episodes kept for retry")
		return
	}

	// Mark everything except the trailing overlap.
	marked := window[:len(window)-mem.SummaryOverlap]
	ids := make([]int64, len(marked))
	for i, ep := range marked {
		ids[i] = ep.ID
	}
	if err := e.db.MarkSummarized(ids, content); err != nil {
		e.log.Warn().Err(err).Msg("mark summarized failed")
		return
	}

	if evicted, err := e.db.EvictOldestSummaries(mem.MaxSummariesInMemory); err != nil {
		e.log.Warn().Err(err).Msg("summary eviction failed")
	} else if evicted > 0 {
		e.log.Debug().Int("evicted", evicted).Msg("summary list trimmed")
	}

	e.maybeCreateGist(ctx)

	e.log.Info().
		Int("episodes", len(marked)).
		Float64("importance", importance).
		Msg("episode window compressed")
}

// windowImportance scores a summary by the conversational mass it covers.
func (e *Engine) windowImportance(window []memory.Episode) float64 {
	total := 0
	for _, ep := range window {
		total += ep.TokenEstimate
	}
	importance := 0.4 + float64(total)/8000
	if importance > 1.0 {
		importance = 1.0
	}
	return importance
}

// maybeCreateGist collapses accumulated first-order summaries into one
// second-order gist once there are enough of them and they are, on
// average, worth keeping.
func (e *Engine) maybeCreateGist(ctx context.Context) {
	mem := e.cfg.Memory

	summaries, err := e.db.NonGistSummaries()
	if err != nil {
		e.log.Warn().Err(err).Msg("gist check failed")
		return
	}
	if len(summaries) <= mem.GistCreationThreshold {
		return
	}

	var sum float64
	for _, s := range summaries {
		sum += s.Importance
	}
	if sum/float64(len(summaries)) <= mem.GistImportanceThreshold {
		return
	}

	texts := make([]string, len(summaries))
	for i, s := range summaries {
		texts[i] = s.Content
	}
	content, err := e.summarizer.Summarize(ctx, texts)
	if err != nil {
		e.log.Warn().Err(err).Msg("gist summarization failed, summaries kept")
		return
	}

	gistID, err := e.db.CollapseIntoGist(content, summaries)
	if err != nil {
		e.log.Warn().Err(err).Msg("gist collapse failed, summaries kept")
		return
	}

	// Covered episodes are now two summarization layers deep.
	start, end := summaries[0].StartEpisodeID, summaries[0].EndEpisodeID
	for _, s := range summaries[1:] {
		if s.StartEpisodeID < start {
			start = s.StartEpisodeID
		}
		if s.EndEpisodeID > end {
			end = s.EndEpisodeID
		}
	}
	if err := e.db.BumpCompressionLevel(start, end); err != nil {
		e.log.Warn().Err(err).Msg("compression level bump failed")
	}

	e.log.Info().Str("gist", gistID).Int("collapsed", len(summaries)).Msg("summaries collapsed into gist")
}
