package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cocolabs/coco/pkg/maintenance"
)

func maintenanceCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run the retention and quality sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, eng, db, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := maintenance.NewService(cfg, db, eng.Validator())
			if err != nil {
				return err
			}

			if !watch {
				svc.Sweep()
				return nil
			}

			cfg.Maintenance.Enabled = true
			if err := svc.Start(); err != nil {
				return err
			}
			fmt.Printf("Maintenance running on schedule %q, Ctrl-C to stop\n", cfg.Maintenance.Schedule)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			svc.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running on the cron schedule")
	return cmd
}
