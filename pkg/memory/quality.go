package memory

import (
	"fmt"

	"github.com/cocolabs/coco/pkg/extract"
)

// QualityIssue flags one stored node that would no longer pass validation.
type QualityIssue struct {
	NodeID    int64                `json:"node_id"`
	Name      string               `json:"name"`
	Type      extract.EntityType   `json:"type"`
	Reason    extract.RejectReason `json:"reason"`
	Mentions  int                  `json:"mentions"`
	EdgeCount int                  `json:"edge_count"`
}

// QualityReport is the result of re-validating every stored node against
// the current extraction rules.
type QualityReport struct {
	TotalNodes int                          `json:"total_nodes"`
	ValidNodes int                          `json:"valid_nodes"`
	Issues     []QualityIssue               `json:"issues"`
	ByReason   map[extract.RejectReason]int `json:"by_reason"`
	ByType     map[extract.EntityType]int   `json:"by_type"`
}

// Score is the fraction of stored nodes that still pass validation.
// An empty graph scores 1.
func (r *QualityReport) Score() float64 {
	if r.TotalNodes == 0 {
		return 1
	}
	return float64(r.ValidNodes) / float64(r.TotalNodes)
}

// AnalyzeQualityIssues re-runs the validator over every node. Rules evolve,
// so entities admitted by an older ruleset can fail the current one.
func (m *MemoryDB) AnalyzeQualityIssues(v *extract.Validator) (*QualityReport, error) {
	nodes, err := m.AllNodes()
	if err != nil {
		return nil, fmt.Errorf("analyze quality: %w", err)
	}

	report := &QualityReport{
		TotalNodes: len(nodes),
		ByReason:   make(map[extract.RejectReason]int),
		ByType:     make(map[extract.EntityType]int),
	}

	for _, n := range nodes {
		reason := v.Classify(n.Name, n.Type)
		if reason == extract.RejectNone {
			report.ValidNodes++
			continue
		}

		edges, err := m.EdgesForNode(n.ID)
		if err != nil {
			return nil, err
		}
		report.Issues = append(report.Issues, QualityIssue{
			NodeID:    n.ID,
			Name:      n.Name,
			Type:      n.Type,
			Reason:    reason,
			Mentions:  n.MentionCount,
			EdgeCount: len(edges),
		})
		report.ByReason[reason]++
		report.ByType[n.Type]++
	}

	return report, nil
}

// OptimizeReport records what an optimization pass removed (or would remove
// in dry-run mode).
type OptimizeReport struct {
	DryRun          bool           `json:"dry_run"`
	NodesRemoved    int            `json:"nodes_removed"`
	EdgesRemoved    int            `json:"edges_removed"`
	MentionsRemoved int            `json:"mentions_removed"`
	Removed         []QualityIssue `json:"removed,omitempty"`
}

// Optimize deletes every node flagged by AnalyzeQualityIssues, letting
// foreign-key cascades drop the attached edges, mentions and aliases. The
// deletion runs in one transaction; any failure rolls the whole pass back.
// Nodes that pass current validation are never touched. With dryRun set,
// nothing is written.
func (m *MemoryDB) Optimize(v *extract.Validator, dryRun bool) (*OptimizeReport, error) {
	report, err := m.AnalyzeQualityIssues(v)
	if err != nil {
		return nil, err
	}

	out := &OptimizeReport{
		DryRun:       dryRun,
		NodesRemoved: len(report.Issues),
		Removed:      report.Issues,
	}
	for _, issue := range report.Issues {
		out.EdgesRemoved += issue.EdgeCount
		out.MentionsRemoved += issue.Mentions
	}

	if dryRun || len(report.Issues) == 0 {
		return out, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin optimize tx: %w", err)
	}
	defer tx.Rollback()

	for _, issue := range report.Issues {
		if _, err := tx.Exec("DELETE FROM nodes WHERE id = ?", issue.NodeID); err != nil {
			return nil, fmt.Errorf("delete node %d: %w", issue.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit optimize tx: %w", err)
	}

	m.log.Info().
		Int("nodes_removed", out.NodesRemoved).
		Int("edges_removed", out.EdgesRemoved).
		Msg("knowledge graph optimized")
	return out, nil
}
