package metrics

import "sync/atomic"

// Snapshot is a consistent-enough copy of Stats safe to read while
// workers are still updating the live counters.
type Snapshot struct {
	DurationMs  int64
	Total       int64
	Processed   int64
	OK          int64
	Mismatches  int64
	Missing     int64
	EntryErrors int64
	Malformed   int64
	BytesHashed int64
	TotalBytes  int64
}

func (s *Stats) Snapshot() Snapshot {
	dur := s.Duration()

	return Snapshot{
		DurationMs:  dur.Milliseconds(),
		Total:       atomic.LoadInt64(&s.Total),
		Processed:   atomic.LoadInt64(&s.Processed),
		OK:          atomic.LoadInt64(&s.OK),
		Mismatches:  atomic.LoadInt64(&s.Mismatches),
		Missing:     atomic.LoadInt64(&s.Missing),
		EntryErrors: atomic.LoadInt64(&s.EntryErrors),
		Malformed:   atomic.LoadInt64(&s.Malformed),
		BytesHashed: atomic.LoadInt64(&s.BytesHashed),
		TotalBytes:  atomic.LoadInt64(&s.TotalBytes),
	}
}
