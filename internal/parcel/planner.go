package parcel

// Plan partitions the half-open identifier space [minID, maxID) into ordered
// fixed-size ranges. The ranges are contiguous, non-overlapping, and together
// cover the space exactly; the final range is truncated at maxID.
//
// Resuming after a crash is re-invoking with a later minID: previously
// persisted rows in re-fetched ranges are silently overwritten, never skipped.
func Plan(minID, maxID, step int64) []Range {
	if step <= 0 || minID >= maxID {
		return nil
	}

	ranges := make([]Range, 0, (maxID-minID+step-1)/step)
	for start := minID; start < maxID; start += step {
		end := start + step
		if end > maxID {
			end = maxID
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
