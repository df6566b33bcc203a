package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cocolabs/coco/pkg/config"
	"github.com/cocolabs/coco/pkg/extract"
	"github.com/cocolabs/coco/pkg/logger"
	"github.com/cocolabs/coco/pkg/memory"
)

// Document is reference material attached to the conversation, injected
// into context within the zone's document budget.
type Document struct {
	Name          string
	Content       string
	TokenEstimate int
}

// ExchangeStats reports what one recorded exchange contributed to the store.
type ExchangeStats struct {
	EntitiesAdded      int `json:"entities_added"`
	RelationshipsAdded int `json:"relationships_added"`
	FactsAdded         int `json:"facts_added"`
}

// Options are the injected collaborators. Zero values select the built-in
// fallbacks (extractive summarizer, lexical ranker, chars/4 estimator).
type Options struct {
	Summarizer     Summarizer
	Ranker         ChunkRanker
	EstimateTokens TokenEstimator
}

// Engine drives the memory subsystem for one workspace. Single-writer:
// all mutations are serialized behind one mutex, matching the one-process
// ownership of the SQLite file.
type Engine struct {
	cfg       *config.Config
	db        *memory.MemoryDB
	extractor *extract.Extractor

	summarizer     Summarizer
	ranker         ChunkRanker
	estimateTokens TokenEstimator

	mu            sync.Mutex
	exchangeCount int
	documents     []Document

	log zerolog.Logger
}

// New builds an engine over an open store.
func New(cfg *config.Config, db *memory.MemoryDB, opts Options) (*Engine, error) {
	extractor, err := extract.NewExtractor(nil)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	if opts.Summarizer == nil {
		opts.Summarizer = ExtractiveSummarizer{}
	}
	if opts.Ranker == nil {
		opts.Ranker = LexicalRanker{}
	}
	if opts.EstimateTokens == nil {
		opts.EstimateTokens = HeuristicTokens
	}

	return &Engine{
		cfg:            cfg,
		db:             db,
		extractor:      extractor,
		summarizer:     opts.Summarizer,
		ranker:         opts.Ranker,
		estimateTokens: opts.EstimateTokens,
		log:            logger.For("engine"),
	}, nil
}

// Validator exposes the extraction gate for quality operations.
func (e *Engine) Validator() *extract.Validator {
	return e.extractor.Validator()
}

// RecordExchange runs extraction over one exchange, persists what survives
// validation, appends the episode and triggers any due compression.
// Storage write failures are logged and skipped; an exchange is recorded
// best-effort rather than aborting the turn.
func (e *Engine) RecordExchange(ctx context.Context, userText, assistantText string) (ExchangeStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats ExchangeStats
	combined := userText + "\n" + assistantText

	tokens, err := e.estimateTokens(combined)
	if err != nil {
		e.log.Warn().Err(err).Msg("token estimate failed, using heuristic")
		tokens, _ = HeuristicTokens(combined)
	}

	episodeID, err := e.db.AppendEpisode(userText, assistantText, tokens)
	if err != nil {
		return stats, fmt.Errorf("record exchange: %w", err)
	}
	e.exchangeCount++

	extraction := e.extractor.Extract(combined)
	for _, ent := range extraction.Entities {
		nodeID, err := e.db.UpsertEntity(ent)
		if err != nil {
			e.log.Warn().Err(err).Str("entity", ent.Name).Msg("entity write failed")
			continue
		}
		stats.EntitiesAdded++
		if err := e.db.RecordMention(nodeID, episodeID, ent.Name, ent.Context, ent.Confidence); err != nil {
			e.log.Warn().Err(err).Str("entity", ent.Name).Msg("mention write failed")
		}
	}
	for _, rel := range extraction.Relationships {
		if err := e.db.UpsertRelationship(rel); err != nil {
			e.log.Warn().Err(err).Str("type", string(rel.Type)).Msg("relationship write failed")
			continue
		}
		stats.RelationshipsAdded++
	}
	for _, c := range e.extractor.ExtractFacts(combined) {
		added, err := e.db.StoreFact(c)
		if err != nil {
			e.log.Warn().Err(err).Str("type", string(c.Type)).Msg("fact write failed")
			continue
		}
		if added {
			stats.FactsAdded++
		}
	}

	e.maybeCompress(ctx)

	e.log.Debug().
		Int("entities", stats.EntitiesAdded).
		Int("relationships", stats.RelationshipsAdded).
		Int("facts", stats.FactsAdded).
		Msg("exchange recorded")
	return stats, nil
}

// AttachDocument registers reference material for context injection.
func (e *Engine) AttachDocument(name, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tokens, err := e.estimateTokens(content)
	if err != nil {
		tokens, _ = HeuristicTokens(content)
	}
	e.documents = append(e.documents, Document{Name: name, Content: content, TokenEstimate: tokens})
	e.log.Info().Str("document", name).Int("tokens", tokens).Msg("document attached")
	return nil
}

// SearchFacts runs full-text search over the fact store, capped at the
// configured result limit.
func (e *Engine) SearchFacts(query string) ([]memory.FactSearchResult, error) {
	return e.db.SearchFacts(query, e.cfg.Facts.SearchLimit)
}

// KnowledgeStatus reports store-wide counts.
func (e *Engine) KnowledgeStatus() (memory.KnowledgeStatus, error) {
	return e.db.Status()
}

// Optimize re-validates the knowledge graph and removes nodes the current
// rules reject. With dryRun it only reports.
func (e *Engine) Optimize(_ context.Context, dryRun bool) (*memory.OptimizeReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Optimize(e.extractor.Validator(), dryRun)
}

// Quality re-validates every stored node without changing anything.
func (e *Engine) Quality() (*memory.QualityReport, error) {
	return e.db.AnalyzeQualityIssues(e.extractor.Validator())
}
