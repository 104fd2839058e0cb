// Package metrics tracks per-run task counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Stats holds the shared counters a running task updates. Every field is
// manipulated with sync/atomic, the timestamps included, so snapshots
// may be taken while workers are still running.
type Stats struct {
	Total      int64
	TotalBytes int64

	Processed   int64
	OK          int64
	Mismatches  int64
	Missing     int64
	EntryErrors int64
	Malformed   int64

	BytesHashed int64

	startedNs  int64
	finishedNs int64
}

func (s *Stats) Start() { atomic.StoreInt64(&s.startedNs, time.Now().UnixNano()) }
func (s *Stats) Stop()  { atomic.StoreInt64(&s.finishedNs, time.Now().UnixNano()) }

// Duration is the elapsed run time: live while the task runs, frozen
// once Stop has been called. Zero before Start.
func (s *Stats) Duration() time.Duration {
	started := atomic.LoadInt64(&s.startedNs)
	if started == 0 {
		return 0
	}
	finished := atomic.LoadInt64(&s.finishedNs)
	if finished == 0 {
		return time.Duration(time.Now().UnixNano() - started)
	}
	return time.Duration(finished - started)
}
