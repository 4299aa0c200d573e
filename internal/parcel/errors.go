package parcel

import "fmt"

// FetchError marks a range whose upstream fetch failed after exhausting all
// retry attempts. The coordinator records it and defers the range to the
// retry pass; it never aborts the run.
type FetchError struct {
	Range Range
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("parcel: fetch range %s: %v", e.Range, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UpsertError marks a sub-batch write that failed after exhausting its
// retries. It fails the whole owning range: the retry pass refetches and
// rewrites every row in the range rather than recovering partial batches,
// which is safe because the upsert is an idempotent whole-row overwrite.
type UpsertError struct {
	Offset int // index of the first row in the failed sub-batch
	Size   int
	Err    error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("parcel: upsert sub-batch at offset %d (%d rows): %v", e.Offset, e.Size, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }
