package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/cocolabs/coco/pkg/extract"
)

// Fact is an exact-fidelity snippet kept outside the lossy summarization
// path. Content is immutable once stored; retrieval only bumps access_count.
type Fact struct {
	ID          int64
	Type        extract.FactType
	Content     string
	Context     string
	Importance  float64
	Confidence  float64
	AccessCount int
	Tags        []string
	CreatedAt   time.Time
}

// StoreFact persists a fact candidate. Re-observing the same (type, content)
// pair is a no-op; facts are never rewritten. Returns whether a row was added.
func (m *MemoryDB) StoreFact(c extract.FactCandidate) (bool, error) {
	res, err := m.db.Exec(
		`INSERT INTO facts (type, content, context, importance, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(type, content) DO NOTHING`,
		string(c.Type), c.Content, c.Context, c.Importance, nowString(),
	)
	if err != nil {
		return false, fmt.Errorf("store fact: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// TopFacts returns the best facts for auto-injection, ranked by
// importance x recency, gated by the confidence floor. Each returned fact's
// access_count is incremented to support working-set ranking.
func (m *MemoryDB) TopFacts(limit int, minConfidence float64) ([]Fact, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := m.db.Query(
		`SELECT id, type, content, context, importance, confidence, access_count, tags, created_at
		 FROM facts
		 WHERE confidence >= ?
		 ORDER BY importance * (1.0 / (1.0 + julianday('now') - julianday(created_at))) DESC
		 LIMIT ?`,
		minConfidence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top facts: %w", err)
	}
	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}

	m.bumpAccessCounts(facts)
	return facts, nil
}

// FactSearchResult is a search hit with its BM25 rank.
type FactSearchResult struct {
	Fact Fact
	Rank float64
}

// SearchFacts performs FTS5 full-text search with BM25 ranking over fact
// content and context.
func (m *MemoryDB) SearchFacts(query string, limit int) ([]FactSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	ftsQuery := sanitizeFTS5Query(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := m.db.Query(
		`SELECT f.id, f.type, f.content, f.context, f.importance, f.confidence, f.access_count, f.tags, f.created_at,
			rank
		 FROM facts_fts
		 JOIN facts f ON facts_fts.rowid = f.id
		 WHERE facts_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	defer rows.Close()

	var results []FactSearchResult
	var hits []Fact
	for rows.Next() {
		var f Fact
		var typ, tags, createdAt string
		var rank float64
		if err := rows.Scan(&f.ID, &typ, &f.Content, &f.Context, &f.Importance,
			&f.Confidence, &f.AccessCount, &tags, &createdAt, &rank); err != nil {
			continue
		}
		f.Type = extract.FactType(typ)
		f.Tags = splitTags(tags)
		f.CreatedAt = parseTime(createdAt)
		results = append(results, FactSearchResult{Fact: f, Rank: rank})
		hits = append(hits, f)
	}
	if err := rows.Err(); err != nil {
		return results, fmt.Errorf("scan fact search results: %w", err)
	}

	m.bumpAccessCounts(hits)
	return results, nil
}

// CountFacts returns the total number of stored facts.
func (m *MemoryDB) CountFacts() int {
	var count int
	m.db.QueryRow("SELECT COUNT(*) FROM facts").Scan(&count)
	return count
}

// bumpAccessCounts is best-effort: a failed bump never blocks retrieval.
func (m *MemoryDB) bumpAccessCounts(facts []Fact) {
	for _, f := range facts {
		if _, err := m.db.Exec("UPDATE facts SET access_count = access_count + 1 WHERE id = ?", f.ID); err != nil {
			m.log.Warn().Err(err).Int64("fact_id", f.ID).Msg("bump fact access count failed")
		}
	}
}

func scanFacts(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}) ([]Fact, error) {
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var typ, tags, createdAt string
		if err := rows.Scan(&f.ID, &typ, &f.Content, &f.Context, &f.Importance,
			&f.Confidence, &f.AccessCount, &tags, &createdAt); err != nil {
			continue
		}
		f.Type = extract.FactType(typ)
		f.Tags = splitTags(tags)
		f.CreatedAt = parseTime(createdAt)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return facts, fmt.Errorf("scan facts: %w", err)
	}
	return facts, nil
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	return strings.Split(tags, ",")
}

// fts5Replacer removes FTS5 special characters from query tokens.
var fts5Replacer = strings.NewReplacer(
	"*", "", "\"", "", "(", "", ")", "",
	":", "", "^", "", "{", "", "}", "",
)

// sanitizeFTS5Query escapes special FTS5 characters and wraps tokens in quotes.
func sanitizeFTS5Query(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	tokens := strings.Fields(query)
	var quoted []string
	for _, t := range tokens {
		t = fts5Replacer.Replace(t)
		t = strings.TrimSpace(t)
		if t != "" {
			quoted = append(quoted, "\""+t+"\"")
		}
	}

	if len(quoted) == 0 {
		return ""
	}

	// Join with OR for broader matching
	return strings.Join(quoted, " OR ")
}
