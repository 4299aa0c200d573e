package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crescent-outreach/intake-cli/internal/arcgis"
	"github.com/crescent-outreach/intake-cli/internal/parcel"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [startID [concurrency]]",
	Short: "Ingest county parcel records into the outreach store",
	Long: `Walks the upstream OBJECTID space in fixed ranges, fetching each range from
the county GIS endpoint and upserting the transformed rows. Fetching the next
range overlaps the previous range's store write.

startID resumes a run from a given OBJECTID (default: configured minimum).
concurrency is accepted for compatibility but the upstream source serializes
requests, so it does not change scheduling.

Ranges that fail both the pipelined pass and the retry pass are reported in
the summary; re-invoke with the printed start ID to re-cover them. A run with
failed ranges still exits 0.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		startID, concurrency, err := parseIngestArgs(args, cfg.ArcGIS.MinObjectID)
		if err != nil {
			return err
		}
		if concurrency > 1 {
			zap.L().Info("concurrency requested but upstream serializes requests; running single-worker",
				zap.Int64("concurrency", concurrency),
			)
		}

		writer, pool, closeWriter, err := openWriter(ctx)
		if err != nil {
			return err
		}
		defer closeWriter()

		fetcher := arcgis.NewClient(arcgis.Options{
			BaseURL:        cfg.ArcGIS.BaseURL,
			MaxRetries:     cfg.ArcGIS.MaxRetries,
			AttemptTimeout: time.Duration(cfg.ArcGIS.TimeoutSecs) * time.Second,
			RatePerSecond:  cfg.ArcGIS.RatePerSecond,
			BackoffBase:    time.Duration(cfg.ArcGIS.BackoffBaseMS) * time.Millisecond,
			BackoffMax:     time.Duration(cfg.ArcGIS.BackoffMaxSecs) * time.Second,
		})

		pipe := parcel.New(fetcher, newUpserter(writer))

		// Run bookkeeping lives in Postgres only; sqlite runs skip it.
		var runLog *parcel.IngestLog
		var runID uuid.UUID
		if pool != nil {
			runLog = parcel.NewIngestLog(pool)
			if runID, err = runLog.Start(ctx, "arcgis"); err != nil {
				zap.L().Warn("could not record run start", zap.Error(err))
				runLog = nil
			}
		}

		sum, runErr := pipe.Run(ctx, parcel.Options{
			MinID:    startID,
			MaxID:    cfg.ArcGIS.MaxObjectID,
			Step:     cfg.ArcGIS.PageSize,
			Cooldown: time.Duration(cfg.Ingest.RetryCooldownSecs) * time.Second,
		})

		if runLog != nil {
			if runErr != nil {
				_ = runLog.Fail(ctx, runID, runErr.Error())
			} else if err := runLog.Complete(ctx, runID, sum); err != nil {
				zap.L().Warn("could not record run completion", zap.Error(err))
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "ingest")
		}

		printSummary(sum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// parseIngestArgs parses the optional positional startID and concurrency.
func parseIngestArgs(args []string, defaultStart int64) (startID, concurrency int64, err error) {
	startID = defaultStart
	concurrency = 1

	if len(args) > 0 {
		startID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil || startID < 0 {
			return 0, 0, eris.Errorf("ingest: startID must be a non-negative integer, got %q", args[0])
		}
	}
	if len(args) > 1 {
		concurrency, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil || concurrency < 1 {
			return 0, 0, eris.Errorf("ingest: concurrency must be a positive integer, got %q", args[1])
		}
	}
	return startID, concurrency, nil
}

func printSummary(sum *parcel.Summary) {
	fmt.Printf("Ingest complete: %d ranges, %d rows fetched, %d rows upserted in %s\n",
		sum.RangesTotal, sum.RowsFetched, sum.RowsUpserted, sum.Elapsed.Round(time.Second))
	if len(sum.FailedRanges) > 0 {
		fmt.Printf("Failed ranges (re-run with the start ID to re-cover): %s\n",
			sum.FailedRangesString())
	}
}
