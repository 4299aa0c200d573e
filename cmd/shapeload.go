package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crescent-outreach/intake-cli/internal/parcel"
)

var shapeloadConcurrency int

var shapeloadCmd = &cobra.Command{
	Use:   "shapeload <file.shp> [file.shp ...]",
	Short: "Load county parcel shapefiles into the outreach store",
	Long: `Offline alternative to the GIS ingest: reads parcel shapefile exports and
upserts them with the same transform rules, so either source converges to
the same store state. Files are read in parallel; store writes share one
upserter.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		writer, _, closeWriter, err := openWriter(ctx)
		if err != nil {
			return err
		}
		defer closeWriter()

		upserter := newUpserter(writer)
		log := zap.L().With(zap.String("command", "shapeload"))

		var total atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(loadWorkers(shapeloadConcurrency))

		for _, path := range args {
			g.Go(func() error {
				rows, err := parcel.ReadShapefile(path)
				if err != nil {
					return err
				}
				log.Info("shapefile read",
					zap.String("path", path),
					zap.Int("rows", len(rows)),
				)

				n, err := upserter.Upsert(gctx, rows)
				if err != nil {
					return eris.Wrapf(err, "shapeload: upsert %s", path)
				}
				total.Add(n)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Loaded %d parcel rows from %d file(s)\n", total.Load(), len(args))
		return nil
	},
}

// loadWorkers clamps the flag to at least one worker; errgroup.SetLimit(0)
// would block every Go call forever.
func loadWorkers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func init() {
	shapeloadCmd.Flags().IntVar(&shapeloadConcurrency, "concurrency", 2, "parallel shapefile reads")
	rootCmd.AddCommand(shapeloadCmd)
}
