package extract

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cocolabs/coco/pkg/logger"
)

// contextRadius is how many characters around a match are kept for provenance.
const contextRadius = 40

// Extractor applies pattern rules to conversation text and validates every
// candidate before accepting it. Extraction is best-effort: rejection is a
// normal filtering outcome, not an error.
type Extractor struct {
	rules     *Rules
	validator *Validator
	log       zerolog.Logger
}

// NewExtractor compiles the rules and returns a ready extractor.
// A pattern that fails to compile is a configuration error surfaced here,
// never at call time.
func NewExtractor(rules *Rules) (*Extractor, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Compile(); err != nil {
		return nil, fmt.Errorf("compile extraction rules: %w", err)
	}
	return &Extractor{
		rules:     rules,
		validator: NewValidator(rules),
		log:       logger.For("extract"),
	}, nil
}

// Validator exposes the validation gate for administrative re-evaluation.
func (e *Extractor) Validator() *Validator {
	return e.validator
}

// Extract runs all entity and relationship patterns over the text.
// Overlapping matches are evaluated independently; duplicates within one
// extraction are collapsed here, duplicates across calls by the store upsert.
func (e *Extractor) Extract(text string) Extraction {
	var out Extraction

	seenEntities := make(map[string]struct{})
	addEntity := func(name string, t EntityType, ctx string, conf float64) {
		name = strings.TrimSpace(name)
		if !e.validator.IsValid(name, t) {
			return
		}
		key := string(t) + "|" + Canonicalize(name)
		if _, dup := seenEntities[key]; dup {
			return
		}
		seenEntities[key] = struct{}{}
		out.Entities = append(out.Entities, Entity{
			Name:       name,
			Type:       t,
			Context:    ctx,
			Confidence: conf,
		})
	}

	for _, rule := range e.rules.Entities {
		for _, re := range rule.compiled {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if re.NumSubexp() >= 1 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				addEntity(text[start:end], rule.Type, contextWindow(text, loc[0], loc[1]), rule.Confidence)
			}
		}
	}

	seenRels := make(map[string]struct{})
	for _, rule := range e.rules.Relations {
		for _, re := range rule.compiled {
			twoCapture := re.NumSubexp() == 2
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				var src, dst string
				if twoCapture {
					if loc[2] < 0 || loc[4] < 0 {
						continue
					}
					src = strings.TrimSpace(text[loc[2]:loc[3]])
					dst = strings.TrimSpace(text[loc[4]:loc[5]])
				} else {
					if loc[2] < 0 {
						continue
					}
					src = SentinelSubject
					dst = strings.TrimSpace(text[loc[2]:loc[3]])
				}

				if !e.validator.IsValid(src, rule.SourceType) || !e.validator.IsValid(dst, rule.TargetType) {
					continue
				}

				key := string(rule.Type) + "|" + Canonicalize(src) + "|" + Canonicalize(dst)
				if _, dup := seenRels[key]; dup {
					continue
				}
				seenRels[key] = struct{}{}

				ctx := contextWindow(text, loc[0], loc[1])
				out.Relationships = append(out.Relationships, Relationship{
					Source:     src,
					SourceType: rule.SourceType,
					Target:     dst,
					TargetType: rule.TargetType,
					Type:       rule.Type,
					Context:    ctx,
					Weight:     rule.Weight,
				})

				// Endpoints become nodes too, typed by the rule's declaration.
				addEntity(src, rule.SourceType, ctx, rule.Weight)
				addEntity(dst, rule.TargetType, ctx, rule.Weight)
			}
		}
	}

	e.log.Debug().
		Int("entities", len(out.Entities)).
		Int("relationships", len(out.Relationships)).
		Msg("extraction complete")

	return out
}

// ExtractFacts matches the typed fact patterns against the text.
func (e *Extractor) ExtractFacts(text string) []FactCandidate {
	var out []FactCandidate
	seen := make(map[string]struct{})

	for _, rule := range e.rules.Facts {
		for _, re := range rule.compiled {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if re.NumSubexp() >= 1 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				content := strings.TrimSpace(text[start:end])
				if len(content) < 2 {
					continue
				}
				key := string(rule.Type) + "|" + content
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, FactCandidate{
					Type:       rule.Type,
					Content:    content,
					Context:    contextWindow(text, loc[0], loc[1]),
					Importance: rule.Importance,
				})
			}
		}
	}

	return out
}

// Canonicalize normalizes a surface form for deduplication: lower-cased,
// whitespace collapsed, leading articles and trailing punctuation stripped.
func Canonicalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), " ")
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	return strings.TrimRight(s, ".,;:!?")
}

func contextWindow(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}
