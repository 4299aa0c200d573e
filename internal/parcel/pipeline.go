package parcel

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crescent-outreach/intake-cli/internal/arcgis"
)

// Fetcher fetches all upstream features whose OBJECTID falls in [start, end).
// arcgis.Client satisfies it.
type Fetcher interface {
	FetchRange(ctx context.Context, start, end int64) ([]arcgis.Feature, error)
}

// Options configures a pipeline run.
type Options struct {
	MinID int64 // first OBJECTID (inclusive); a resume point after a crash
	MaxID int64 // last OBJECTID (exclusive)
	Step  int64 // range width; must not exceed the upstream page cap

	// Cooldown is the wait before each second-pass retry of a failed range.
	Cooldown time.Duration
}

// Summary is the final reconciliation report for a run.
type Summary struct {
	RangesTotal  int
	RowsFetched  int64
	RowsUpserted int64
	Elapsed      time.Duration
	FailedRanges []Range // ranges still failing after both passes
}

// FailedRangesString renders the failed set for logs and the ingest log.
func (s *Summary) FailedRangesString() string {
	if len(s.FailedRanges) == 0 {
		return ""
	}
	parts := make([]string, len(s.FailedRanges))
	for i, r := range s.FailedRanges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

// Pipeline drives Plan -> fetch -> Transform -> Upsert across all ranges.
//
// Fetch and upsert are pipelined with a depth of one: the fetch for range
// i+1 starts as soon as the fetch for range i completes, without waiting for
// range i's store write; the prior write is awaited just before the next
// write begins. The upstream source serializes fetches regardless of client
// concurrency, so overlapping its latency with the store write is the only
// available throughput win.
type Pipeline struct {
	fetcher  Fetcher
	upserter *Upserter
	log      *zap.Logger
}

// New creates a pipeline over the given fetcher and upserter.
func New(f Fetcher, u *Upserter) *Pipeline {
	return &Pipeline{
		fetcher:  f,
		upserter: u,
		log:      zap.L().With(zap.String("component", "parcel.pipeline")),
	}
}

// upsertOutcome is the deferred result of the single in-flight store write.
type upsertOutcome struct {
	r   Range
	n   int64
	err error
}

// Run executes the full ingestion: one pipelined pass over all planned
// ranges, then one slower synchronous retry pass over the failures. Ranges
// still failing after both passes are reported in the summary, not retried
// further; the operator re-invokes with that range's start identifier.
//
// Run returns an error only on context cancellation; per-range failures are
// not fatal.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	ranges := Plan(opts.MinID, opts.MaxID, opts.Step)
	start := time.Now()

	sum := &Summary{RangesTotal: len(ranges)}
	var failed []Range

	p.log.Info("starting ingest",
		zap.Int64("min_id", opts.MinID),
		zap.Int64("max_id", opts.MaxID),
		zap.Int64("step", opts.Step),
		zap.Int("ranges", len(ranges)),
	)

	// First pass: pipelined, depth 1. Exactly one fetch and at most one
	// upsert are ever in flight.
	var pending chan upsertOutcome
	awaitPending := func() {
		if pending == nil {
			return
		}
		out := <-pending
		pending = nil
		if out.err != nil {
			p.log.Warn("range upsert failed, deferring to retry pass",
				zap.String("range", out.r.String()),
				zap.Error(out.err),
			)
			failed = append(failed, out.r)
			return
		}
		sum.RowsUpserted += out.n
	}

	for i, r := range ranges {
		if ctx.Err() != nil {
			awaitPending()
			sum.Elapsed = time.Since(start)
			sum.FailedRanges = failed
			return sum, ctx.Err()
		}

		features, err := p.fetcher.FetchRange(ctx, r.Start, r.End)
		if err != nil {
			ferr := &FetchError{Range: r, Err: err}
			p.log.Warn("range fetch failed, deferring to retry pass",
				zap.String("range", r.String()),
				zap.Error(ferr),
			)
			failed = append(failed, r)
			p.progress(sum, start, i+1, len(ranges))
			continue
		}

		sum.RowsFetched += int64(len(features))

		// A sparse range with no records needs no write.
		if len(features) > 0 {
			rows := TransformAll(features)

			// Serialize writes: the previous range's upsert must finish
			// before this one starts.
			awaitPending()

			ch := make(chan upsertOutcome, 1)
			pending = ch
			go func(r Range, rows []Row) {
				n, err := p.upserter.Upsert(ctx, rows)
				ch <- upsertOutcome{r: r, n: n, err: err}
			}(r, rows)
		}

		p.progress(sum, start, i+1, len(ranges))
	}
	awaitPending()

	// Second pass: synchronous, one attempt per failed range after a
	// cool-down. No pipelining here; the slow path favors gentleness.
	if len(failed) > 0 && ctx.Err() == nil {
		p.log.Info("retrying failed ranges", zap.Int("count", len(failed)))
		failed = p.retryPass(ctx, failed, opts.Cooldown, sum)
	}

	sum.Elapsed = time.Since(start)
	sum.FailedRanges = failed

	log := p.log.With(
		zap.Int64("rows_fetched", sum.RowsFetched),
		zap.Int64("rows_upserted", sum.RowsUpserted),
		zap.Duration("elapsed", sum.Elapsed),
	)
	if len(failed) > 0 {
		log.Warn("ingest complete with failed ranges",
			zap.String("failed_ranges", sum.FailedRangesString()),
		)
	} else {
		log.Info("ingest complete")
	}

	return sum, ctx.Err()
}

// retryPass refetches and rewrites each failed range once, returning the
// ranges that still fail.
func (p *Pipeline) retryPass(ctx context.Context, failed []Range, cooldown time.Duration, sum *Summary) []Range {
	var still []Range
	for _, r := range failed {
		if cooldown > 0 {
			timer := time.NewTimer(cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
				return append(still, failedAfter(failed, r)...)
			case <-timer.C:
			}
		}

		features, err := p.fetcher.FetchRange(ctx, r.Start, r.End)
		if err != nil {
			p.log.Warn("range failed on retry pass",
				zap.String("range", r.String()),
				zap.Error(&FetchError{Range: r, Err: err}),
			)
			still = append(still, r)
			continue
		}
		sum.RowsFetched += int64(len(features))

		if len(features) == 0 {
			continue
		}

		n, err := p.upserter.Upsert(ctx, TransformAll(features))
		if err != nil {
			p.log.Warn("range upsert failed on retry pass",
				zap.String("range", r.String()),
				zap.Error(err),
			)
			still = append(still, r)
			continue
		}
		sum.RowsUpserted += n
	}
	return still
}

// failedAfter returns r and every range after it in order, for the
// cancellation path of the retry pass.
func failedAfter(failed []Range, r Range) []Range {
	for i, f := range failed {
		if f == r {
			return failed[i:]
		}
	}
	return nil
}

// progress logs cumulative counts, elapsed time, and a linear ETA after each
// range.
func (p *Pipeline) progress(sum *Summary, start time.Time, done, total int) {
	elapsed := time.Since(start)
	var eta time.Duration
	if done > 0 {
		avg := elapsed / time.Duration(done)
		eta = avg * time.Duration(total-done)
	}
	p.log.Info("range processed",
		zap.Int("ranges_done", done),
		zap.Int("ranges_total", total),
		zap.Int64("rows_fetched", sum.RowsFetched),
		zap.Duration("elapsed", elapsed.Round(time.Second)),
		zap.Duration("eta", eta.Round(time.Second)),
	)
}
