package engine

import (
	"context"
	"unicode/utf8"

	"github.com/cocolabs/coco/pkg/memory"
)

// DocumentExcerpt is the injected portion of an attached document.
type DocumentExcerpt struct {
	Name    string
	Content string
	Partial bool
}

// TurnContext is the assembled memory payload for the next turn, sized by
// the current pressure zone.
type TurnContext struct {
	Pressure      float64
	Zone          Zone
	Episodes      []memory.Episode
	Summaries     []string
	Facts         []memory.Fact
	Documents     []DocumentExcerpt
	TokenEstimate int
}

// ContextForTurn assembles summaries, facts and documents for the next
// turn, applying the current zone's budgets exactly.
func (e *Engine) ContextForTurn(ctx context.Context, query string) (TurnContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pressure := e.currentPressure()
	limits := ZoneFor(pressure)
	out := TurnContext{Pressure: pressure, Zone: limits.Zone}

	// The zone's buffer budget caps how many live exchanges ride along.
	episodes, err := e.db.RecentEpisodes(limits.BufferSize)
	if err != nil {
		return out, err
	}
	out.Episodes = episodes

	summaries, err := e.db.RecentSummaries(e.cfg.Memory.MaxSummariesInContext)
	if err != nil {
		return out, err
	}
	out.Summaries = e.truncateSummaries(summaries, limits.SummaryTokens)

	facts, err := e.db.TopFacts(limits.FactCount, e.cfg.Facts.AutoInjectConfidence)
	if err != nil {
		return out, err
	}
	out.Facts = facts

	out.Documents = e.selectDocuments(ctx, query, limits.DocumentTokens)

	for _, ep := range out.Episodes {
		out.TokenEstimate += ep.TokenEstimate
	}
	for _, s := range out.Summaries {
		out.TokenEstimate += len(s) / charsPerToken
	}
	for _, f := range out.Facts {
		out.TokenEstimate += len(f.Content) / charsPerToken
	}
	for _, d := range out.Documents {
		out.TokenEstimate += len(d.Content) / charsPerToken
	}

	if err := e.db.RecordContextBuild(query, pressure, string(limits.Zone),
		len(out.Summaries), len(out.Facts), len(out.Documents), out.TokenEstimate); err != nil {
		e.log.Warn().Err(err).Msg("context build audit write failed")
	}

	return out, nil
}

// currentPressure estimates context-window utilization as a percentage.
// If any token estimate fails, the turn runs in the Low zone: staying at
// maximum capacity is recoverable, over-compression is not.
func (e *Engine) currentPressure() float64 {
	liveTokens, err := e.db.LiveTokenSum()
	if err != nil {
		e.log.Warn().Err(err).Msg("pressure estimate unavailable, assuming low zone")
		return 0
	}

	used := liveTokens
	summaries, err := e.db.RecentSummaries(e.cfg.Memory.MaxSummariesInMemory)
	if err == nil {
		for _, s := range summaries {
			n, terr := e.estimateTokens(s.Content)
			if terr != nil {
				e.log.Warn().Err(terr).Msg("pressure estimate unavailable, assuming low zone")
				return 0
			}
			used += n
		}
	}
	for _, d := range e.documents {
		used += d.TokenEstimate
	}

	limit := e.cfg.Pressure.ContextWindowLimit
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}

// truncateSummaries applies the zone's summary token budget left to right
// over the most recent summaries: whole summaries until the budget runs
// out, then one truncated tail, then nothing.
func (e *Engine) truncateSummaries(summaries []memory.Summary, tokenBudget int) []string {
	var out []string
	remaining := tokenBudget * charsPerToken
	for _, s := range summaries {
		if remaining <= 0 {
			break
		}
		content := s.Content
		if len(content) > remaining {
			// Back off to a rune boundary so the cut never emits invalid UTF-8.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		out = append(out, content)
		remaining -= len(content)
	}
	return out
}

// selectDocuments injects attached documents within the zone's document
// budget. Small documents go in whole; large ones contribute only their
// top-ranked chunks. A failing ranker skips the document for this turn.
func (e *Engine) selectDocuments(ctx context.Context, query string, tokenBudget int) []DocumentExcerpt {
	var out []DocumentExcerpt
	remaining := tokenBudget

	for _, doc := range e.documents {
		if remaining <= 0 {
			break
		}

		if doc.TokenEstimate < e.cfg.Documents.SmallTokenThreshold {
			out = append(out, DocumentExcerpt{Name: doc.Name, Content: doc.Content})
			remaining -= doc.TokenEstimate
			continue
		}

		chunks, err := e.ranker.RankChunks(ctx, doc.Content, query)
		if err != nil {
			e.log.Warn().Err(err).Str("document", doc.Name).Msg("chunk ranking failed, document skipped")
			continue
		}
		if len(chunks) > e.cfg.Documents.RelevantChunksK {
			chunks = chunks[:e.cfg.Documents.RelevantChunksK]
		}

		var excerpt string
		for _, c := range chunks {
			tokens := len(c.Content) / charsPerToken
			if tokens > remaining {
				break
			}
			excerpt += c.Content
			remaining -= tokens
		}
		if excerpt != "" {
			out = append(out, DocumentExcerpt{Name: doc.Name, Content: excerpt, Partial: true})
		}
	}

	return out
}
