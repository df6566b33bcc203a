package extract

import (
	"strings"
	"unicode"
)

// RejectReason categorizes why a candidate failed validation.
type RejectReason string

const (
	RejectNone     RejectReason = ""          // candidate is valid
	RejectNoise    RejectReason = "noise"     // too short or no letters
	RejectStopWord RejectReason = "stop_word" // the candidate is a filler word
	RejectFragment RejectReason = "fragment"  // grammatical fragment or wrong shape
)

// Validator gates extracted candidates. It is deterministic: the same
// (name, type) input always yields the same verdict.
type Validator struct {
	rules *Rules
}

// NewValidator wraps compiled rules. The zero Rules value is not usable;
// callers go through NewExtractor which compiles first.
func NewValidator(rules *Rules) *Validator {
	return &Validator{rules: rules}
}

// IsValid reports whether the candidate name is acceptable for the claimed type.
func (v *Validator) IsValid(name string, t EntityType) bool {
	return v.Classify(name, t) == RejectNone
}

// Classify returns RejectNone for a valid candidate, or the rejection category.
func (v *Validator) Classify(name string, t EntityType) RejectReason {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return RejectNoise
	}

	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return RejectNoise
	}

	lower := strings.ToLower(name)
	if _, ok := v.rules.stopSet[lower]; ok {
		return RejectStopWord
	}

	// A well-formed name phrase does not start or end with a filler word
	// ("not just", "the project").
	tokens := strings.Fields(lower)
	if len(tokens) > 1 {
		if _, ok := v.rules.stopSet[tokens[0]]; ok {
			return RejectFragment
		}
		if _, ok := v.rules.stopSet[tokens[len(tokens)-1]]; ok {
			return RejectFragment
		}
	}

	shapes := v.rules.shapes[t]
	if len(shapes) == 0 {
		return RejectFragment
	}
	for _, re := range shapes {
		if re.MatchString(name) {
			return RejectNone
		}
	}
	return RejectFragment
}
