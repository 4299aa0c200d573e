package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/crescent-outreach/intake-cli/internal/parcel"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingest runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return eris.New("status: run bookkeeping requires the postgres driver")
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		runs, err := parcel.NewIngestLog(pool).Recent(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(runs) == 0 {
			fmt.Println("No ingest runs recorded yet")
			return nil
		}

		fmt.Printf("%-36s %-8s %-9s %-17s %10s %10s %s\n",
			"ID", "Source", "Status", "Started", "Fetched", "Upserted", "Failed Ranges")
		fmt.Println(strings.Repeat("-", 110))

		for _, r := range runs {
			fmt.Printf("%-36s %-8s %-9s %-17s %10d %10d %s\n",
				r.ID, r.Source, r.Status, r.StartedAt.Format("2006-01-02 15:04"),
				r.RowsFetched, r.RowsUpserted, r.FailedRanges)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}
