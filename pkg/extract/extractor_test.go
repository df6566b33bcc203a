package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(nil)
	require.NoError(t, err)
	return ex
}

func entityTypes(ext Extraction) map[string]EntityType {
	m := make(map[string]EntityType)
	for _, e := range ext.Entities {
		m[e.Name] = e.Type
	}
	return m
}

func TestExtract_CollaborationScenario(t *testing.T) {
	ex := newTestExtractor(t)

	ext := ex.Extract("Keith Lambert works with Sarah on the COCO project using Python")

	types := entityTypes(ext)
	assert.Equal(t, EntityPerson, types["Keith Lambert"])
	assert.Equal(t, EntityPerson, types["Sarah"])
	assert.Equal(t, EntityProject, types["COCO"])
	assert.Equal(t, EntityTool, types["Python"])

	var worksWith, uses bool
	for _, r := range ext.Relationships {
		if r.Type == RelWorksWith && r.Source == "Keith Lambert" && r.Target == "Sarah" {
			worksWith = true
		}
		if r.Type == RelUses && r.Target == "Python" &&
			(r.Source == "Keith Lambert" || r.Source == "COCO") {
			uses = true
		}
	}
	assert.True(t, worksWith, "expected a WORKS_WITH edge between Keith Lambert and Sarah")
	assert.True(t, uses, "expected a USES edge to Python from Keith Lambert or COCO")
}

func TestExtract_FragmentYieldsNothing(t *testing.T) {
	ex := newTestExtractor(t)

	ext := ex.Extract("not just through these")
	assert.Empty(t, ext.Entities)
	assert.Empty(t, ext.Relationships)
}

func TestExtract_SentinelSubject(t *testing.T) {
	ex := newTestExtractor(t)

	ext := ex.Extract("I use Python for most scripts")

	var found bool
	for _, r := range ext.Relationships {
		if r.Type == RelUses && r.Source == SentinelSubject && r.Target == "Python" {
			found = true
		}
	}
	assert.True(t, found, "single-capture pattern should default the subject to %q", SentinelSubject)
}

func TestExtract_DuplicateMatchesCollapse(t *testing.T) {
	ex := newTestExtractor(t)

	ext := ex.Extract("Alice Brown works with Carol Davis. Alice Brown works with Carol Davis.")

	count := 0
	for _, r := range ext.Relationships {
		if r.Type == RelWorksWith && r.Source == "Alice Brown" && r.Target == "Carol Davis" {
			count++
		}
	}
	assert.Equal(t, 1, count, "identical relationships within one extraction collapse")
}

func TestExtract_ContextWindowStored(t *testing.T) {
	ex := newTestExtractor(t)

	ext := ex.Extract("Earlier today Alice Brown works with Carol Davis on infrastructure")
	require.NotEmpty(t, ext.Relationships)
	assert.Contains(t, ext.Relationships[0].Context, "works with")
}

func TestExtractFacts_TypedPatterns(t *testing.T) {
	ex := newTestExtractor(t)

	text := "We decided to migrate the database. Docs at https://example.com/wiki. " +
		"My name is Keith. Ping me at keith@example.com. Release is 2026-03-01."

	facts := ex.ExtractFacts(text)
	byType := make(map[FactType]string)
	for _, f := range facts {
		byType[f.Type] = f.Content
	}

	assert.Equal(t, "migrate the database", byType[FactDecision])
	assert.Equal(t, "https://example.com/wiki", byType[FactURL])
	assert.Equal(t, "Keith", byType[FactName])
	assert.Equal(t, "keith@example.com", byType[FactEmail])
	assert.Equal(t, "2026-03-01", byType[FactDate])
}

func TestExtractFacts_CommandAndFile(t *testing.T) {
	ex := newTestExtractor(t)

	facts := ex.ExtractFacts("Run this:\n$ make deploy\nthen check ./build/output.log")

	var command, file bool
	for _, f := range facts {
		if f.Type == FactCommand && f.Content == "make deploy" {
			command = true
		}
		if f.Type == FactFile && f.Content == "./build/output.log" {
			file = true
		}
	}
	assert.True(t, command, "expected shell command fact")
	assert.True(t, file, "expected file path fact")
}

func TestNewExtractor_BadPatternFailsFast(t *testing.T) {
	rules := DefaultRules()
	rules.Entities = append(rules.Entities, EntityRule{
		Type:     EntityPerson,
		Patterns: []string{"(unclosed"},
	})

	_, err := NewExtractor(rules)
	require.Error(t, err)
}

func TestNewExtractor_RelationCaptureCountChecked(t *testing.T) {
	rules := DefaultRules()
	rules.Relations = append(rules.Relations, RelationRule{
		Type:     RelUses,
		Patterns: []string{`no capture groups here`},
	})

	_, err := NewExtractor(rules)
	require.Error(t, err)
}
