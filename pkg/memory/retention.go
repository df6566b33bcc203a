package memory

import (
	"fmt"
	"time"
)

// PruneEpisodes deletes summarized episodes that reached the terminal
// compression level and are older than the retention horizon. Unsummarized
// episodes and episodes mid-way through compression are never deleted, so
// no conversational content is lost before a summary has captured it.
func (m *MemoryDB) PruneEpisodes(retentionDays, terminalLevel int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	horizon := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTimeFormat)
	res, err := m.db.Exec(
		`DELETE FROM episodes
		 WHERE summarized = 1 AND compression_level >= ? AND created_at < ?`,
		terminalLevel, horizon,
	)
	if err != nil {
		return 0, fmt.Errorf("prune episodes: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows > 0 {
		m.log.Info().Int64("episodes", rows).Int("retention_days", retentionDays).Msg("pruned old episodes")
	}
	return int(rows), nil
}

// Vacuum reclaims space after large deletions.
func (m *MemoryDB) Vacuum() error {
	if _, err := m.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
