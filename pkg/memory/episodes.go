package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Episode is one conversational exchange. It flips summarized=true once
// rolled into a summary window and carries a compression_level that grows
// as it is folded into ancestor summaries.
type Episode struct {
	ID                int64
	UserText          string
	AssistantText     string
	TokenEstimate     int
	Summarized        bool
	CompressionLevel  int
	CompressedContent string
	CreatedAt         time.Time
}

// Summary is a compressed representation of a window of episodes. A gist is
// a second-order summary collapsing multiple summaries.
type Summary struct {
	ID             string
	Content        string
	StartEpisodeID int64
	EndEpisodeID   int64
	EpisodeCount   int
	Importance     float64
	IsGist         bool
	CreatedAt      time.Time
}

// AppendEpisode records a new exchange and returns its id.
func (m *MemoryDB) AppendEpisode(userText, assistantText string, tokenEstimate int) (int64, error) {
	res, err := m.db.Exec(
		`INSERT INTO episodes (user_text, assistant_text, token_estimate, created_at)
		 VALUES (?, ?, ?, ?)`,
		userText, assistantText, tokenEstimate, nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("append episode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append episode id: %w", err)
	}
	return id, nil
}

// LiveBufferLen counts episodes not yet rolled into any summary.
func (m *MemoryDB) LiveBufferLen() (int, error) {
	var n int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM episodes WHERE summarized = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("live buffer len: %w", err)
	}
	return n, nil
}

// LiveTokenSum totals the token estimates of the live buffer, for context
// pressure accounting.
func (m *MemoryDB) LiveTokenSum() (int, error) {
	var n int
	if err := m.db.QueryRow("SELECT COALESCE(SUM(token_estimate), 0) FROM episodes WHERE summarized = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("live token sum: %w", err)
	}
	return n, nil
}

// OldestUnsummarized returns the oldest live episodes, in insertion order.
func (m *MemoryDB) OldestUnsummarized(limit int) ([]Episode, error) {
	rows, err := m.db.Query(
		`SELECT id, user_text, assistant_text, token_estimate, summarized, compression_level, compressed_content, created_at
		 FROM episodes WHERE summarized = 0
		 ORDER BY id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("oldest unsummarized: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var summarized int
		var createdAt string
		if err := rows.Scan(&ep.ID, &ep.UserText, &ep.AssistantText, &ep.TokenEstimate,
			&summarized, &ep.CompressionLevel, &ep.CompressedContent, &createdAt); err != nil {
			continue
		}
		ep.Summarized = summarized != 0
		ep.CreatedAt = parseTime(createdAt)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// RecentEpisodes returns the newest live episodes, oldest first.
func (m *MemoryDB) RecentEpisodes(limit int) ([]Episode, error) {
	rows, err := m.db.Query(
		`SELECT id, user_text, assistant_text, token_estimate, summarized, compression_level, compressed_content, created_at
		 FROM (
			SELECT * FROM episodes WHERE summarized = 0 ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var summarized int
		var createdAt string
		if err := rows.Scan(&ep.ID, &ep.UserText, &ep.AssistantText, &ep.TokenEstimate,
			&summarized, &ep.CompressionLevel, &ep.CompressedContent, &createdAt); err != nil {
			continue
		}
		ep.Summarized = summarized != 0
		ep.CreatedAt = parseTime(createdAt)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// MarkSummarized flips the summarized flag and advances compression_level
// for the given episodes. Called only after the summary write succeeded, so
// a failed summarization leaves episodes eligible for retry.
func (m *MemoryDB) MarkSummarized(ids []int64, compressed string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, compressed)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := m.db.Exec(fmt.Sprintf(
		`UPDATE episodes
		 SET summarized = 1, compression_level = compression_level + 1, compressed_content = ?
		 WHERE id IN (%s)`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("mark summarized: %w", err)
	}
	return nil
}

// SummarizedCount counts episodes already rolled into a summary.
func (m *MemoryDB) SummarizedCount() (int, error) {
	var n int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM episodes WHERE summarized = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("summarized count: %w", err)
	}
	return n, nil
}

// InsertSummary stores a new first-order summary and returns its id.
func (m *MemoryDB) InsertSummary(content string, startID, endID int64, episodeCount int, importance float64) (string, error) {
	id := uuid.New().String()
	_, err := m.db.Exec(
		`INSERT INTO summaries (id, content, start_episode_id, end_episode_id, episode_count, importance, is_gist, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		id, content, startID, endID, episodeCount, importance, nowString(),
	)
	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}
	return id, nil
}

// RecentSummaries returns the newest summaries (gists included), newest first.
func (m *MemoryDB) RecentSummaries(limit int) ([]Summary, error) {
	rows, err := m.db.Query(
		`SELECT id, content, start_episode_id, end_episode_id, episode_count, importance, is_gist, created_at
		 FROM summaries ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// NonGistSummaries returns first-order summaries, oldest first, for gist
// collapse checks.
func (m *MemoryDB) NonGistSummaries() ([]Summary, error) {
	rows, err := m.db.Query(
		`SELECT id, content, start_episode_id, end_episode_id, episode_count, importance, is_gist, created_at
		 FROM summaries WHERE is_gist = 0 ORDER BY rowid ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("non-gist summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SummaryCount returns the number of stored summaries (gists included).
func (m *MemoryDB) SummaryCount() (int, error) {
	var n int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM summaries").Scan(&n); err != nil {
		return 0, fmt.Errorf("summary count: %w", err)
	}
	return n, nil
}

// EvictOldestSummaries keeps at most limit summaries, deleting the oldest.
// Returns the number evicted.
func (m *MemoryDB) EvictOldestSummaries(limit int) (int, error) {
	res, err := m.db.Exec(
		`DELETE FROM summaries WHERE rowid NOT IN (
			SELECT rowid FROM summaries ORDER BY rowid DESC LIMIT ?
		)`,
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("evict summaries: %w", err)
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}

// CollapseIntoGist atomically replaces the given first-order summaries with
// one gist row. On any failure the originals are untouched.
func (m *MemoryDB) CollapseIntoGist(content string, collapsed []Summary) (string, error) {
	if len(collapsed) == 0 {
		return "", nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin gist tx: %w", err)
	}
	defer tx.Rollback()

	var startID, endID int64
	var episodeCount int
	var importanceSum float64
	placeholders := make([]string, len(collapsed))
	args := make([]interface{}, len(collapsed))
	for i, s := range collapsed {
		if startID == 0 || s.StartEpisodeID < startID {
			startID = s.StartEpisodeID
		}
		if s.EndEpisodeID > endID {
			endID = s.EndEpisodeID
		}
		episodeCount += s.EpisodeCount
		importanceSum += s.Importance
		placeholders[i] = "?"
		args[i] = s.ID
	}

	if _, err := tx.Exec(fmt.Sprintf(
		"DELETE FROM summaries WHERE id IN (%s)", strings.Join(placeholders, ",")), args...); err != nil {
		return "", fmt.Errorf("delete collapsed summaries: %w", err)
	}

	id := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO summaries (id, content, start_episode_id, end_episode_id, episode_count, importance, is_gist, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		id, content, startID, endID, episodeCount, importanceSum/float64(len(collapsed)), nowString(),
	); err != nil {
		return "", fmt.Errorf("insert gist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit gist tx: %w", err)
	}
	return id, nil
}

// BumpCompressionLevel advances compression_level for episodes covered by
// the collapsed summaries (they are now two summarization layers deep).
func (m *MemoryDB) BumpCompressionLevel(startID, endID int64) error {
	_, err := m.db.Exec(
		`UPDATE episodes SET compression_level = compression_level + 1
		 WHERE summarized = 1 AND id BETWEEN ? AND ?`,
		startID, endID,
	)
	if err != nil {
		return fmt.Errorf("bump compression level: %w", err)
	}
	return nil
}

// RecordContextBuild writes one audit row per context assembly.
func (m *MemoryDB) RecordContextBuild(query string, pressure float64, zone string, summaries, facts, documents, tokenEstimate int) error {
	_, err := m.db.Exec(
		`INSERT INTO context_builds (query, pressure, zone, summaries_injected, facts_injected, documents_injected, token_estimate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		query, pressure, zone, summaries, facts, documents, tokenEstimate, nowString(),
	)
	if err != nil {
		return fmt.Errorf("record context build: %w", err)
	}
	return nil
}

func scanSummaries(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]Summary, error) {
	var summaries []Summary
	for rows.Next() {
		var s Summary
		var isGist int
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Content, &s.StartEpisodeID, &s.EndEpisodeID,
			&s.EpisodeCount, &s.Importance, &isGist, &createdAt); err != nil {
			continue
		}
		s.IsGist = isGist != 0
		s.CreatedAt = parseTime(createdAt)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return summaries, fmt.Errorf("scan summaries: %w", err)
	}
	return summaries, nil
}
