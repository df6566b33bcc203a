package memory

import (
	"fmt"
	"os"
	"strings"

	"github.com/cocolabs/coco/pkg/extract"
)

// snapshotSeparator is a unique separator between entries in snapshot files.
// Uses a marker unlikely to appear in normal markdown content.
const snapshotSeparator = "\n<!-- @@FACT_ENTRY@@ -->\n"

// ExportSnapshot writes every stored fact to a readable markdown file,
// grouped under one ## heading per fact type.
func (m *MemoryDB) ExportSnapshot(path string) error {
	rows, err := m.db.Query(
		`SELECT id, type, content, context, importance, confidence, access_count, tags, created_at
		 FROM facts ORDER BY type, id`,
	)
	if err != nil {
		return fmt.Errorf("list facts: %w", err)
	}
	facts, err := scanFacts(rows)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("# Fact Snapshot\n")
	for _, f := range facts {
		sb.WriteString(snapshotSeparator)
		sb.WriteString(fmt.Sprintf("## %s\n\n%s\n", f.Type, f.Content))
		if f.Context != "" {
			sb.WriteString(fmt.Sprintf("\n> %s\n", f.Context))
		}
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// ImportSnapshot reads a snapshot file and stores each entry as a fact.
// Idempotent: re-importing the same file adds nothing, because the fact
// store ignores duplicate (type, content) pairs. Entries with an unknown
// fact type heading are skipped with a warning rather than failing the run.
func (m *MemoryDB) ImportSnapshot(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, nil
	}

	imported := 0
	for _, section := range strings.Split(content, snapshotSeparator) {
		section = strings.TrimSpace(section)
		if section == "" || strings.HasPrefix(section, "# ") {
			continue
		}

		lines := strings.SplitN(section, "\n", 2)
		heading := strings.TrimSpace(strings.TrimPrefix(lines[0], "## "))
		if heading == "" || len(lines) < 2 {
			continue
		}

		factType := extract.FactType(heading)
		if !knownFactType(factType) {
			m.log.Warn().Str("type", heading).Msg("skipping snapshot entry with unknown fact type")
			continue
		}

		body := strings.TrimSpace(lines[1])
		context := ""
		if idx := strings.Index(body, "\n> "); idx >= 0 {
			context = strings.TrimSpace(strings.TrimPrefix(body[idx+1:], "> "))
			body = strings.TrimSpace(body[:idx])
		}
		if body == "" {
			continue
		}

		added, err := m.StoreFact(extract.FactCandidate{
			Type:       factType,
			Content:    body,
			Context:    context,
			Importance: 0.5,
		})
		if err != nil {
			return imported, fmt.Errorf("import fact %q: %w", body, err)
		}
		if added {
			imported++
		}
	}

	return imported, nil
}

func knownFactType(t extract.FactType) bool {
	for _, known := range extract.AllFactTypes {
		if t == known {
			return true
		}
	}
	return false
}
