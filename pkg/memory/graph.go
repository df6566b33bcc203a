package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cocolabs/coco/pkg/extract"
)

// Node is an entity in the knowledge graph.
type Node struct {
	ID           int64
	Name         string
	Canonical    string
	Type         extract.EntityType
	Summary      string
	Importance   float64
	Confidence   float64
	MentionCount int
	FirstSeen    time.Time
	LastSeen     time.Time
}

// Edge is a typed relationship between two nodes.
type Edge struct {
	ID          int64
	SourceID    int64
	TargetID    int64
	Type        extract.RelationType
	Description string
	Weight      float64
	FirstSeen   time.Time
	LastSeen    time.Time
}

// KnowledgeStatus summarizes the store for the surrounding application.
type KnowledgeStatus struct {
	TotalNodes    int `json:"total_nodes"`
	TotalEdges    int `json:"total_edges"`
	TotalMentions int `json:"total_mentions"`
	TotalFacts    int `json:"total_facts"`
	TotalEpisodes int `json:"total_episodes"`
}

// UpsertEntity inserts a validated entity or strengthens the existing row:
// the same canonical name never produces a second node, only a mention_count
// increment and a last_seen refresh.
func (m *MemoryDB) UpsertEntity(ent extract.Entity) (int64, error) {
	canonical := extract.Canonicalize(ent.Name)
	now := nowString()

	_, err := m.db.Exec(
		`INSERT INTO nodes (name, canonical, type, importance, confidence, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(canonical) DO UPDATE SET
			mention_count = mention_count + 1,
			last_seen = excluded.last_seen,
			importance = MAX(importance, excluded.importance)`,
		ent.Name, canonical, string(ent.Type), extract.BaseImportance(ent.Type), ent.Confidence, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert entity: %w", err)
	}

	var id int64
	err = m.db.QueryRow("SELECT id FROM nodes WHERE canonical = ?", canonical).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get entity id: %w", err)
	}
	return id, nil
}

// RecordMention writes an immutable provenance record for one extraction event.
func (m *MemoryDB) RecordMention(nodeID, episodeID int64, surface, context string, confidence float64) error {
	_, err := m.db.Exec(
		`INSERT INTO mentions (id, node_id, episode_id, surface, context, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), nodeID, episodeID, surface, context, confidence, nowString(),
	)
	if err != nil {
		return fmt.Errorf("record mention: %w", err)
	}
	return nil
}

// UpsertRelationship resolves both endpoints (creating nodes as needed) and
// inserts the edge at its base weight, or strengthens an existing edge by
// the fixed delta. The (source, target, type) triple stays unique.
func (m *MemoryDB) UpsertRelationship(rel extract.Relationship) error {
	sourceID, err := m.UpsertEntity(extract.Entity{
		Name: rel.Source, Type: rel.SourceType, Context: rel.Context, Confidence: rel.Weight,
	})
	if err != nil {
		return err
	}
	targetID, err := m.UpsertEntity(extract.Entity{
		Name: rel.Target, Type: rel.TargetType, Context: rel.Context, Confidence: rel.Weight,
	})
	if err != nil {
		return err
	}

	now := nowString()
	_, err = m.db.Exec(
		`INSERT INTO edges (source_id, target_id, type, description, weight, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			weight = weight + ?,
			last_seen = excluded.last_seen`,
		sourceID, targetID, string(rel.Type), rel.Context, rel.Weight, now, now,
		edgeWeightDelta,
	)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// AddAlias maps an alternate surface form to an existing node.
func (m *MemoryDB) AddAlias(nodeID int64, alias string) error {
	_, err := m.db.Exec(
		`INSERT INTO aliases (node_id, alias, canonical_alias, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(canonical_alias) DO NOTHING`,
		nodeID, alias, extract.Canonicalize(alias), nowString(),
	)
	if err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

// ResolveAlias returns the node id for a name, checking canonical names
// first and the alias table second.
func (m *MemoryDB) ResolveAlias(name string) (int64, bool) {
	canonical := extract.Canonicalize(name)

	var id int64
	err := m.db.QueryRow("SELECT id FROM nodes WHERE canonical = ?", canonical).Scan(&id)
	if err == nil {
		return id, true
	}

	err = m.db.QueryRow("SELECT node_id FROM aliases WHERE canonical_alias = ?", canonical).Scan(&id)
	if err == nil {
		return id, true
	}
	return 0, false
}

// NodeByCanonical fetches a node by its canonical name. Returns nil if absent.
func (m *MemoryDB) NodeByCanonical(name string) *Node {
	row := m.db.QueryRow(
		`SELECT id, name, canonical, type, summary, importance, confidence, mention_count, first_seen, last_seen
		 FROM nodes WHERE canonical = ?`,
		extract.Canonicalize(name),
	)
	node, err := scanNode(row)
	if err != nil {
		return nil
	}
	return node
}

// TopNodesByType returns the highest-importance nodes of one type for
// context injection.
func (m *MemoryDB) TopNodesByType(t extract.EntityType, limit int) ([]Node, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := m.db.Query(
		`SELECT id, name, canonical, type, summary, importance, confidence, mention_count, first_seen, last_seen
		 FROM nodes WHERE type = ?
		 ORDER BY importance DESC, mention_count DESC
		 LIMIT ?`,
		string(t), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top nodes by type: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			continue
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// AllNodes returns every node, for quality analysis.
func (m *MemoryDB) AllNodes() ([]Node, error) {
	rows, err := m.db.Query(
		`SELECT id, name, canonical, type, summary, importance, confidence, mention_count, first_seen, last_seen
		 FROM nodes ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			continue
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// EdgesForNode returns edges where the node is source or target.
func (m *MemoryDB) EdgesForNode(nodeID int64) ([]Edge, error) {
	rows, err := m.db.Query(
		`SELECT id, source_id, target_id, type, description, weight, first_seen, last_seen
		 FROM edges WHERE source_id = ? OR target_id = ?`,
		nodeID, nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("edges for node: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var typ, firstSeen, lastSeen string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &typ, &e.Description, &e.Weight, &firstSeen, &lastSeen); err != nil {
			continue
		}
		e.Type = extract.RelationType(typ)
		e.FirstSeen = parseTime(firstSeen)
		e.LastSeen = parseTime(lastSeen)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Status returns row counts across the store.
func (m *MemoryDB) Status() (KnowledgeStatus, error) {
	var st KnowledgeStatus
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM nodes", &st.TotalNodes},
		{"SELECT COUNT(*) FROM edges", &st.TotalEdges},
		{"SELECT COUNT(*) FROM mentions", &st.TotalMentions},
		{"SELECT COUNT(*) FROM facts", &st.TotalFacts},
		{"SELECT COUNT(*) FROM episodes", &st.TotalEpisodes},
	}
	for _, c := range counts {
		if err := m.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return st, fmt.Errorf("knowledge status: %w", err)
		}
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var typ, firstSeen, lastSeen string
	err := row.Scan(&n.ID, &n.Name, &n.Canonical, &typ, &n.Summary,
		&n.Importance, &n.Confidence, &n.MentionCount, &firstSeen, &lastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan node: %w", err)
	}
	n.Type = extract.EntityType(typ)
	n.FirstSeen = parseTime(firstSeen)
	n.LastSeen = parseTime(lastSeen)
	return &n, nil
}
