package extract

import (
	"fmt"
	"regexp"
)

// namePhrase matches a capitalized name ("Sarah", "Keith Lambert").
const namePhrase = `[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`

// EntityRule is an ordered list of patterns producing candidates of one type.
// A pattern with a capture group yields group 1; otherwise the whole match.
type EntityRule struct {
	Type       EntityType
	Patterns   []string
	Confidence float64

	compiled []*regexp.Regexp
}

// RelationRule produces edge candidates. Patterns with two capture groups
// yield (source, target); single-capture patterns yield the target with
// SentinelSubject as source.
type RelationRule struct {
	Type       RelationType
	SourceType EntityType
	TargetType EntityType
	Patterns   []string
	Weight     float64

	compiled []*regexp.Regexp
}

// FactRule matches exact-fidelity snippets of one fact type.
type FactRule struct {
	Type       FactType
	Patterns   []string
	Importance float64

	compiled []*regexp.Regexp
}

// Rules is the full extraction configuration. Zero global state: construct
// one, compile it, hand it to NewExtractor.
type Rules struct {
	Entities  []EntityRule
	Relations []RelationRule
	Facts     []FactRule

	// StopWords rejects filler candidates outright.
	StopWords []string

	// TypeShapes are per-type validation patterns; a candidate must match
	// at least one shape for its claimed type.
	TypeShapes map[EntityType][]string

	stopSet map[string]struct{}
	shapes  map[EntityType][]*regexp.Regexp
}

// Compile compiles every pattern, failing fast on the first bad regex.
// A malformed rule is a configuration error, not a per-call condition.
func (r *Rules) Compile() error {
	for i := range r.Entities {
		er := &r.Entities[i]
		er.compiled = er.compiled[:0]
		for _, p := range er.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("compile entity pattern %q for %s: %w", p, er.Type, err)
			}
			er.compiled = append(er.compiled, re)
		}
	}
	for i := range r.Relations {
		rr := &r.Relations[i]
		rr.compiled = rr.compiled[:0]
		for _, p := range rr.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("compile relation pattern %q for %s: %w", p, rr.Type, err)
			}
			if n := re.NumSubexp(); n < 1 || n > 2 {
				return fmt.Errorf("relation pattern %q for %s: want 1 or 2 capture groups, got %d", p, rr.Type, n)
			}
			rr.compiled = append(rr.compiled, re)
		}
	}
	for i := range r.Facts {
		fr := &r.Facts[i]
		fr.compiled = fr.compiled[:0]
		for _, p := range fr.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("compile fact pattern %q for %s: %w", p, fr.Type, err)
			}
			fr.compiled = append(fr.compiled, re)
		}
	}

	r.stopSet = make(map[string]struct{}, len(r.StopWords))
	for _, w := range r.StopWords {
		r.stopSet[w] = struct{}{}
	}

	r.shapes = make(map[EntityType][]*regexp.Regexp, len(r.TypeShapes))
	for t, patterns := range r.TypeShapes {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("compile shape pattern %q for %s: %w", p, t, err)
			}
			r.shapes[t] = append(r.shapes[t], re)
		}
	}

	return nil
}

// DefaultRules returns the built-in extraction configuration.
func DefaultRules() *Rules {
	return &Rules{
		Entities: []EntityRule{
			{
				Type:       EntityPerson,
				Confidence: 0.9,
				Patterns: []string{
					`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`,
					`\b([A-Z][a-z]+)\s+(?:said|says|told|asked|thinks|mentioned)\b`,
				},
			},
			{
				Type:       EntityProject,
				Confidence: 0.8,
				Patterns: []string{
					`\bthe\s+([A-Za-z][\w-]*)\s+project\b`,
					`\b[Pp]roject\s+([A-Z][\w-]*)\b`,
				},
			},
			{
				Type:       EntityTool,
				Confidence: 0.8,
				Patterns: []string{
					`\busing\s+([A-Z][A-Za-z0-9+#.]*)\b`,
					`\b(?:written|built|implemented)\s+in\s+([A-Z][A-Za-z0-9+#.]*)`,
					`\bswitch(?:ed|ing)?\s+to\s+([A-Z][A-Za-z0-9+#.]*)`,
				},
			},
			{
				Type:       EntitySkill,
				Confidence: 0.7,
				Patterns: []string{
					`(?i)\bskilled\s+(?:in|at)\s+([a-zA-Z][\w +#-]{1,30})`,
					`(?i)\bgood\s+at\s+([a-zA-Z][\w +#-]{1,30})`,
				},
			},
			{
				Type:       EntityGoal,
				Confidence: 0.6,
				Patterns: []string{
					`(?i)\b(?:wants?\s+to|planning\s+to|aims?\s+to|goal\s+is\s+to)\s+([a-z][\w ]{2,60})`,
				},
			},
			{
				Type:       EntityOrganization,
				Confidence: 0.8,
				Patterns: []string{
					`\bworks\s+(?:at|for)\s+([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*)`,
					`\b([A-Z][A-Za-z]+\s+(?:Inc|LLC|Corp|Ltd|GmbH))\b`,
				},
			},
		},
		Relations: []RelationRule{
			{
				Type:       RelWorksWith,
				SourceType: EntityPerson,
				TargetType: EntityPerson,
				Weight:     1.0,
				Patterns: []string{
					`(` + namePhrase + `)\s+(?:works|is\s+working)\s+with\s+(` + namePhrase + `)`,
					`(` + namePhrase + `)\s+and\s+(` + namePhrase + `)\s+(?:work|are\s+working)\s+together`,
				},
			},
			{
				Type:       RelWorksFor,
				SourceType: EntityPerson,
				TargetType: EntityOrganization,
				Weight:     0.9,
				Patterns: []string{
					`(` + namePhrase + `)\s+works\s+(?:for|at)\s+([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*)`,
				},
			},
			{
				Type:       RelLeads,
				SourceType: EntityPerson,
				TargetType: EntityProject,
				Weight:     0.9,
				Patterns: []string{
					`(` + namePhrase + `)\s+(?:leads|is\s+leading|runs)\s+(?:the\s+)?([A-Z][\w-]*)`,
				},
			},
			{
				Type:       RelUses,
				SourceType: EntityPerson,
				TargetType: EntityTool,
				Weight:     0.8,
				Patterns: []string{
					`(` + namePhrase + `)\s+(?:uses|is\s+using)\s+([A-Z][A-Za-z0-9+#.]*)`,
					`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)[^.!?]*?\busing\s+([A-Z][A-Za-z0-9+#.]*)`,
					`\b(?:I|[Ww]e)\s+use\s+([A-Z][A-Za-z0-9+#.]*)`,
				},
			},
			{
				Type:       RelUses,
				SourceType: EntityProject,
				TargetType: EntityTool,
				Weight:     0.8,
				Patterns: []string{
					`([A-Z][\w-]*)\s+project\s+using\s+([A-Z][A-Za-z0-9+#.]*)`,
				},
			},
			{
				Type:       RelSkilledIn,
				SourceType: EntityPerson,
				TargetType: EntitySkill,
				Weight:     0.8,
				Patterns: []string{
					`(` + namePhrase + `)\s+is\s+skilled\s+(?:in|at)\s+([A-Za-z][\w +#-]{1,30})`,
					`\bI(?:'m|\s+am)\s+(?:good|skilled)\s+(?:at|in)\s+([A-Za-z][\w +#-]{1,30})`,
				},
			},
			{
				Type:       RelWants,
				SourceType: EntityPerson,
				TargetType: EntityGoal,
				Weight:     0.7,
				Patterns: []string{
					`(` + namePhrase + `)\s+wants\s+to\s+([a-z][\w ]{2,60})`,
					`\bI\s+want\s+to\s+([a-z][\w ]{2,60})`,
				},
			},
			{
				Type:       RelSupports,
				SourceType: EntityPerson,
				TargetType: EntityProject,
				Weight:     0.7,
				Patterns: []string{
					`(` + namePhrase + `)\s+supports\s+(?:the\s+)?([A-Z][\w-]*)`,
				},
			},
			{
				Type:       RelPartOf,
				SourceType: EntityProject,
				TargetType: EntityProject,
				Weight:     0.7,
				Patterns: []string{
					`([A-Z][\w-]*)\s+is\s+part\s+of\s+(?:the\s+)?([A-Z][\w-]*)`,
				},
			},
		},
		Facts: []FactRule{
			{Type: FactCommand, Importance: 0.8, Patterns: []string{
				`(?m)^\s*\$\s+(\S[^\n]{1,120})`,
				"`([a-z][\\w-]+(?:\\s+[^`\\n]{1,100})?)`",
			}},
			{Type: FactCode, Importance: 0.7, Patterns: []string{
				// Go's regexp caps repeat counts at 1000, so the 1-2000 lazy
			// repetition is split into two chained lazy quantifiers.
			"```(?:[a-z]*\\n)?([\\s\\S]{1,1000}?(?:[\\s\\S]{1,1000}?)??)```",
			}},
			{Type: FactFile, Importance: 0.7, Patterns: []string{
				`((?:\./|/|~/)[\w./-]+\.[A-Za-z0-9]+)`,
			}},
			{Type: FactURL, Importance: 0.8, Patterns: []string{
				`(https?://[^\s)>"']*[\w/=&#-])`,
			}},
			{Type: FactDecision, Importance: 0.9, Patterns: []string{
				`(?i)\b(?:decided\s+to|decision:|we\s+will\s+go\s+with|let's\s+go\s+with)\s+([^.\n]{3,120})`,
			}},
			{Type: FactAppointment, Importance: 0.8, Patterns: []string{
				`(?i)\b(?:meeting|appointment|call)\s+(?:on|at)\s+([^.\n]{3,60})`,
			}},
			{Type: FactContact, Importance: 0.7, Patterns: []string{
				`(?i)\breach\s+(?:me|him|her|them)\s+at\s+([^\s.,]{3,60})`,
			}},
			{Type: FactPreference, Importance: 0.7, Patterns: []string{
				`(?i)\bI\s+(?:prefer|like|love|hate|always\s+use)\s+([^.\n]{2,80})`,
			}},
			{Type: FactTask, Importance: 0.7, Patterns: []string{
				`(?i)\b(?:TODO:?\s+|need\s+to\s+|don't\s+forget\s+to\s+)([^.\n]{3,100})`,
			}},
			{Type: FactCredential, Importance: 0.9, Patterns: []string{
				`(?i)\b(?:api[_ ]?key|token|password|secret)\s*[:=]\s*(\S{6,80})`,
			}},
			{Type: FactNumber, Importance: 0.6, Patterns: []string{
				`(?i)\b(?:costs?|price|total|budget)\s*(?:is|of|:|=)?\s*(\$?\d[\d,.]*)`,
			}},
			{Type: FactDate, Importance: 0.6, Patterns: []string{
				`\b(\d{4}-\d{2}-\d{2})\b`,
			}},
			{Type: FactName, Importance: 0.9, Patterns: []string{
				`(?i)\bmy\s+name\s+is\s+([A-Za-z][\w ]{1,40})`,
			}},
			{Type: FactLocation, Importance: 0.8, Patterns: []string{
				`(?i)\bI\s+(?:live|am\s+based)\s+in\s+([A-Za-z][\w ]{2,40})`,
			}},
			{Type: FactEmail, Importance: 0.8, Patterns: []string{
				`([\w.+-]+@[\w-]+\.\w+(?:\.\w+)*)`,
			}},
			{Type: FactPhone, Importance: 0.7, Patterns: []string{
				`(\+?\d[\d\s().-]{7,16}\d)`,
			}},
			{Type: FactConfig, Importance: 0.7, Patterns: []string{
				`(?m)\b([A-Z][A-Z0-9_]{2,40}=\S{1,80})`,
			}},
			{Type: FactQuote, Importance: 0.5, Patterns: []string{
				`"([^"\n]{10,160})"`,
			}},
		},
		StopWords: []string{
			"the", "a", "an", "and", "or", "but", "not", "just", "so", "if",
			"is", "are", "was", "were", "be", "been", "being", "am",
			"i", "me", "my", "we", "us", "our", "you", "your", "it", "its",
			"he", "she", "they", "them", "their", "this", "that", "these", "those",
			"to", "of", "in", "on", "at", "by", "for", "from", "with", "about",
			"into", "through", "over", "under", "between", "during",
			"have", "has", "had", "do", "does", "did", "done",
			"will", "would", "should", "could", "can", "may", "might", "must",
			"get", "got", "make", "made", "go", "going", "gone",
			"working", "work", "works", "worked",
			"thing", "things", "stuff", "something", "anything", "nothing",
			"what", "which", "who", "whom", "how", "when", "where", "why",
			"there", "here", "then", "than", "also", "very", "really",
			"some", "any", "all", "no", "yes", "ok", "okay",
		},
		TypeShapes: map[EntityType][]string{
			EntityPerson: {
				`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*$`,
			},
			EntityProject: {
				`^[A-Za-z][A-Za-z0-9_-]*$`,
				`^[A-Z][A-Za-z0-9_-]*(?:\s+[A-Z][A-Za-z0-9_-]*)*$`,
			},
			EntityTool: {
				`^[A-Za-z][A-Za-z0-9+#.-]*$`,
			},
			EntitySkill: {
				`^[A-Za-z][A-Za-z0-9+# -]{1,39}$`,
			},
			EntityGoal: {
				`^[a-z][\w ,-]{2,60}$`,
			},
			EntityOrganization: {
				`^[A-Z][A-Za-z0-9&. -]{1,40}$`,
			},
		},
	}
}
