package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/cocolabs/coco/pkg/engine"
)

func consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive memory console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, eng, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "coco> ",
				HistoryFile: filepath.Join(cfg.WorkspacePath(), ".console_history"),
			})
			if err != nil {
				return fmt.Errorf("init readline: %w", err)
			}
			defer rl.Close()

			fmt.Println("COCO memory console. Type text to record it, /help for commands.")
			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}
				if err := handleConsoleLine(cmd, eng, line); err != nil {
					fmt.Fprintln(os.Stderr, "Error:", err)
				}
			}
		},
	}
}

func handleConsoleLine(cmd *cobra.Command, eng *engine.Engine, line string) error {
	ctx := cmd.Context()

	switch {
	case line == "/help":
		fmt.Println(`Commands:
  /status            store counts
  /context <query>   assemble context for a query
  /search <query>    full-text search over stored facts
  /attach <path>     attach a document for context injection
  /help, /quit
Any other input is recorded as a conversational exchange.`)
		return nil

	case line == "/status":
		st, err := eng.KnowledgeStatus()
		if err != nil {
			return err
		}
		fmt.Printf("nodes=%d edges=%d mentions=%d facts=%d episodes=%d\n",
			st.TotalNodes, st.TotalEdges, st.TotalMentions, st.TotalFacts, st.TotalEpisodes)
		return nil

	case strings.HasPrefix(line, "/context "):
		query := strings.TrimSpace(strings.TrimPrefix(line, "/context "))
		tc, err := eng.ContextForTurn(ctx, query)
		if err != nil {
			return err
		}
		fmt.Printf("pressure=%.1f%% zone=%s (~%d tokens)\n", tc.Pressure, tc.Zone, tc.TokenEstimate)
		for _, s := range tc.Summaries {
			fmt.Println("  summary:", s)
		}
		for _, f := range tc.Facts {
			fmt.Printf("  fact[%s]: %s\n", f.Type, f.Content)
		}
		for _, d := range tc.Documents {
			fmt.Printf("  document %s (%d chars, partial=%v)\n", d.Name, len(d.Content), d.Partial)
		}
		return nil

	case strings.HasPrefix(line, "/search "):
		query := strings.TrimSpace(strings.TrimPrefix(line, "/search "))
		results, err := eng.SearchFacts(query)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no matching facts")
			return nil
		}
		for _, r := range results {
			fmt.Printf("  [%s] %s\n", r.Fact.Type, r.Fact.Content)
		}
		return nil

	case strings.HasPrefix(line, "/attach "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		return eng.AttachDocument(filepath.Base(path), string(data))

	case strings.HasPrefix(line, "/"):
		return fmt.Errorf("unknown command %q", strings.Fields(line)[0])

	default:
		stats, err := eng.RecordExchange(ctx, line, "")
		if err != nil {
			return err
		}
		fmt.Printf("recorded: entities+%d relationships+%d facts+%d\n",
			stats.EntitiesAdded, stats.RelationshipsAdded, stats.FactsAdded)
		return nil
	}
}
