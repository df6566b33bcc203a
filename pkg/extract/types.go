// Package extract turns raw conversation text into typed entities,
// relationships and facts using pattern rules plus a validation gate.
package extract

// EntityType classifies a knowledge-graph node.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityProject      EntityType = "project"
	EntityTool         EntityType = "tool"
	EntitySkill        EntityType = "skill"
	EntityGoal         EntityType = "goal"
	EntityOrganization EntityType = "organization"
)

// AllEntityTypes lists every valid entity type, in schema order.
var AllEntityTypes = []EntityType{
	EntityPerson, EntityProject, EntityTool,
	EntitySkill, EntityGoal, EntityOrganization,
}

// importanceBoost is the initial importance assigned on first observation.
var importanceBoost = map[EntityType]float64{
	EntityPerson:       1.0,
	EntityOrganization: 0.9,
	EntityProject:      0.8,
	EntityTool:         0.7,
	EntitySkill:        0.6,
	EntityGoal:         0.6,
}

// BaseImportance returns the type-specific importance boost for a new entity.
func BaseImportance(t EntityType) float64 {
	if b, ok := importanceBoost[t]; ok {
		return b
	}
	return 0.5
}

// RelationType classifies a knowledge-graph edge.
type RelationType string

const (
	RelWorksWith RelationType = "WORKS_WITH"
	RelWorksFor  RelationType = "WORKS_FOR"
	RelLeads     RelationType = "LEADS"
	RelUses      RelationType = "USES"
	RelSkilledIn RelationType = "SKILLED_IN"
	RelWants     RelationType = "WANTS"
	RelSupports  RelationType = "SUPPORTS"
	RelPartOf    RelationType = "PART_OF"
)

// AllRelationTypes lists every valid relationship type.
var AllRelationTypes = []RelationType{
	RelWorksWith, RelWorksFor, RelLeads, RelUses,
	RelSkilledIn, RelWants, RelSupports, RelPartOf,
}

// FactType classifies an exact-fidelity fact record.
type FactType string

const (
	FactCommand     FactType = "command"
	FactCode        FactType = "code"
	FactFile        FactType = "file"
	FactURL         FactType = "url"
	FactDecision    FactType = "decision"
	FactAppointment FactType = "appointment"
	FactContact     FactType = "contact"
	FactPreference  FactType = "preference"
	FactTask        FactType = "task"
	FactCredential  FactType = "credential"
	FactNumber      FactType = "number"
	FactDate        FactType = "date"
	FactName        FactType = "name"
	FactLocation    FactType = "location"
	FactEmail       FactType = "email"
	FactPhone       FactType = "phone"
	FactConfig      FactType = "config"
	FactQuote       FactType = "quote"
)

// AllFactTypes lists every valid fact type.
var AllFactTypes = []FactType{
	FactCommand, FactCode, FactFile, FactURL, FactDecision, FactAppointment,
	FactContact, FactPreference, FactTask, FactCredential, FactNumber,
	FactDate, FactName, FactLocation, FactEmail, FactPhone, FactConfig,
	FactQuote,
}

// SentinelSubject is the default source endpoint for single-capture
// relationship patterns ("I use Python" has no explicit subject).
const SentinelSubject = "User"

// Entity is a validated entity candidate produced by Extract.
type Entity struct {
	Name       string
	Type       EntityType
	Context    string
	Confidence float64
}

// Relationship is a validated edge candidate produced by Extract.
type Relationship struct {
	Source     string
	SourceType EntityType
	Target     string
	TargetType EntityType
	Type       RelationType
	Context    string
	Weight     float64
}

// Extraction is the result of running the extractor over one text.
type Extraction struct {
	Entities      []Entity
	Relationships []Relationship
}

// FactCandidate is a typed exact-text snippet matched by a fact pattern.
type FactCandidate struct {
	Type       FactType
	Content    string
	Context    string
	Importance float64
}
