package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge store counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := eng.KnowledgeStatus()
			if err != nil {
				return err
			}
			fmt.Printf("Nodes:    %d\n", st.TotalNodes)
			fmt.Printf("Edges:    %d\n", st.TotalEdges)
			fmt.Printf("Mentions: %d\n", st.TotalMentions)
			fmt.Printf("Facts:    %d\n", st.TotalFacts)
			fmt.Printf("Episodes: %d\n", st.TotalEpisodes)
			return nil
		},
	}
}

func qualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Re-validate the knowledge graph against current extraction rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := eng.Quality()
			if err != nil {
				return err
			}
			fmt.Printf("Nodes: %d total, %d valid, %d flagged (score %.2f)\n",
				report.TotalNodes, report.ValidNodes, len(report.Issues), report.Score())
			for reason, n := range report.ByReason {
				fmt.Printf("  %s: %d\n", reason, n)
			}
			for _, issue := range report.Issues {
				fmt.Printf("  [%s] %q (%s, %d mentions, %d edges)\n",
					issue.Reason, issue.Name, issue.Type, issue.Mentions, issue.EdgeCount)
			}
			return nil
		},
	}
}

func optimizeCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Remove invalid nodes from the knowledge graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := eng.Optimize(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			verb := "Removed"
			if report.DryRun {
				verb = "Would remove"
			}
			fmt.Printf("%s %d nodes, %d edges, %d mentions\n",
				verb, report.NodesRemoved, report.EdgesRemoved, report.MentionsRemoved)
			for _, issue := range report.Removed {
				fmt.Printf("  [%s] %q (%s)\n", issue.Reason, issue.Name, issue.Type)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	return cmd
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the fact store as markdown",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <path>",
		Short: "Write all facts to a markdown snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, db, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.ExportSnapshot(args[0]); err != nil {
				return err
			}
			fmt.Printf("Exported %d facts to %s\n", db.CountFacts(), args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <path>",
		Short: "Import facts from a markdown snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, db, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			imported, err := db.ImportSnapshot(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d new facts\n", imported)
			return nil
		},
	})

	return cmd
}
