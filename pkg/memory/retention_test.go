package memory

import (
	"testing"
	"time"
)

func TestPruneEpisodes(t *testing.T) {
	db := openTestDB(t)

	oldTime := time.Now().UTC().AddDate(0, 0, -40).Format(sqliteTimeFormat)
	insert := func(summarized, level int, createdAt string) {
		t.Helper()
		_, err := db.db.Exec(
			`INSERT INTO episodes (user_text, assistant_text, summarized, compression_level, created_at)
			 VALUES ('u', 'a', ?, ?, ?)`,
			summarized, level, createdAt,
		)
		if err != nil {
			t.Fatal(err)
		}
	}

	insert(1, 2, oldTime)     // old, terminal level: prunable
	insert(1, 1, oldTime)     // old but not yet terminal: kept
	insert(0, 0, oldTime)     // old but unsummarized: kept, content not yet captured
	insert(1, 2, nowString()) // terminal but recent: kept

	pruned, err := db.PruneEpisodes(30, 2)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned episode, got %d", pruned)
	}

	st, err := db.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalEpisodes != 3 {
		t.Fatalf("expected 3 surviving episodes, got %d", st.TotalEpisodes)
	}
}

func TestPruneEpisodesDisabled(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.AppendEpisode("u", "a", 10); err != nil {
		t.Fatal(err)
	}
	pruned, err := db.PruneEpisodes(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 0 {
		t.Fatal("retention disabled should prune nothing")
	}
}
