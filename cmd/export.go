package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/crescent-outreach/intake-cli/internal/report"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the canvassing walk list as an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if cfg.Store.Driver != "postgres" {
			return eris.New("export: submissions live in the postgres store")
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		list, err := report.FetchWalkList(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if err := report.WriteWalkList(exportOut, list); err != nil {
			return eris.Wrap(err, "export")
		}

		fmt.Printf("Wrote %d row(s) to %s\n", len(list), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "walklist.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}
