package memory

import (
	"testing"

	"github.com/cocolabs/coco/pkg/extract"
)

func TestStoreFactDeduplicates(t *testing.T) {
	db := openTestDB(t)

	c := extract.FactCandidate{
		Type:       extract.FactDecision,
		Content:    "We decided to use PostgreSQL for the new service",
		Context:    "architecture discussion",
		Importance: 0.8,
	}

	added, err := db.StoreFact(c)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("first store should add a row")
	}

	// Exact re-observation is a no-op, content is never rewritten
	added, err = db.StoreFact(c)
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("duplicate store should not add a row")
	}
	if got := db.CountFacts(); got != 1 {
		t.Fatalf("expected 1 fact, got %d", got)
	}

	// Same content under a different type is a distinct fact
	c.Type = extract.FactQuote
	added, err = db.StoreFact(c)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("same content with different type should add a row")
	}
}

func TestTopFactsRankingAndAccessCount(t *testing.T) {
	db := openTestDB(t)

	low := extract.FactCandidate{Type: extract.FactURL, Content: "https://example.com/docs", Importance: 0.2}
	high := extract.FactCandidate{Type: extract.FactDecision, Content: "Ship the beta on Friday", Importance: 0.9}
	if _, err := db.StoreFact(low); err != nil {
		t.Fatal(err)
	}
	if _, err := db.StoreFact(high); err != nil {
		t.Fatal(err)
	}

	facts, err := db.TopFacts(1, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(facts))
	}
	if facts[0].Content != high.Content {
		t.Fatalf("expected highest-importance fact first, got %q", facts[0].Content)
	}

	// Retrieval bumps access_count
	facts, err = db.TopFacts(1, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if facts[0].AccessCount != 1 {
		t.Fatalf("expected access_count 1 after one prior retrieval, got %d", facts[0].AccessCount)
	}
}

func TestSearchFacts(t *testing.T) {
	db := openTestDB(t)

	db.StoreFact(extract.FactCandidate{Type: extract.FactCommand, Content: "$ kubectl rollout restart deploy/api", Importance: 0.7})
	db.StoreFact(extract.FactCandidate{Type: extract.FactDecision, Content: "Keep the staging cluster on the old release", Importance: 0.6})

	results, err := db.SearchFacts("kubectl restart", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one search hit")
	}
	if results[0].Fact.Type != extract.FactCommand {
		t.Fatalf("expected command fact first, got %q", results[0].Fact.Type)
	}
}

func TestSearchFactsSanitizesQuery(t *testing.T) {
	db := openTestDB(t)

	db.StoreFact(extract.FactCandidate{Type: extract.FactFile, Content: "./build/output.log", Importance: 0.5})

	// Special FTS5 characters must not produce a syntax error
	if _, err := db.SearchFacts(`build* (output) "log"`, 10); err != nil {
		t.Fatalf("sanitized query should not error: %v", err)
	}
	results, err := db.SearchFacts(`***`, 10)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Fatal("all-special query should return no results")
	}
}
