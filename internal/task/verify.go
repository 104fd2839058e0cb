package task

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
)

// Status classifies one manifest entry after verification.
type Status int

const (
	StatusOK Status = iota
	StatusMismatch
	StatusMissing
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMismatch:
		return "MISMATCH"
	case StatusMissing:
		return "MISSING"
	}
	return "UNKNOWN"
}

// VerifyOptions configure a verification run.
type VerifyOptions struct {
	Workers   int
	ChunkSize int

	// Quick short-circuits to MISMATCH on a size difference when the
	// entry carries a recorded size, skipping the digest. SFV files
	// record no sizes, so parsed manifests always take the full path.
	Quick bool

	// Algorithm overrides the manifest's recorded algorithm.
	Algorithm checksum.Algorithm
}

// EntryResult is the terminal classification of one manifest entry.
type EntryResult struct {
	Path     string // as recorded in the manifest
	Resolved string // absolute path checked on disk
	Status   Status
	Expected string
	Computed string
	Err      error // underlying cause for MISSING
}

// VerifyResult aggregates the itemized classifications, in manifest order.
type VerifyResult struct {
	Algorithm checksum.Algorithm
	Entries   []EntryResult

	OK         int
	Mismatches int
	Missing    int
}

// Clean reports whether every entry verified OK.
func (r *VerifyResult) Clean() bool {
	return r.Mismatches == 0 && r.Missing == 0
}

// Verify recomputes the digest of every manifest entry and classifies it
// OK, MISMATCH or MISSING. Entries are independent and processed on a
// bounded worker pool; the classification set does not depend on worker
// count or completion order. Digests compare case-insensitively.
func Verify(ctx context.Context, m *manifest.Manifest, opts VerifyOptions, stats *metrics.Stats, notify ProgressFunc) (*VerifyResult, error) {
	alg := opts.Algorithm
	if alg == "" {
		alg = m.Algorithm
	}
	if !checksum.Supported(alg) {
		return nil, fmt.Errorf("verify: %w: %q", checksum.ErrUnsupportedAlgorithm, alg)
	}

	entries := m.Entries()
	total := int64(len(entries))
	atomic.StoreInt64(&stats.Total, total)
	atomic.StoreInt64(&stats.Malformed, int64(len(m.Malformed)))

	emitter := &progressEmitter{fn: notify}
	results := make([]EntryResult, len(entries))

	workers := poolSize(opts.Workers)
	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			e := entries[i]
			results[i] = verifyEntry(m, e, alg, opts, stats)

			switch results[i].Status {
			case StatusOK:
				atomic.AddInt64(&stats.OK, 1)
			case StatusMismatch:
				atomic.AddInt64(&stats.Mismatches, 1)
			case StatusMissing:
				atomic.AddInt64(&stats.Missing, 1)
			}
			processed := atomic.AddInt64(&stats.Processed, 1)
			emitter.emit(Progress{Processed: processed, Total: total, Path: e.Path})
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	interrupted := false
feed:
	for i := range entries {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		select {
		case <-ctx.Done():
			interrupted = true
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if interrupted {
		return nil, fmt.Errorf("verify: %w", cancelled(ctx))
	}

	res := &VerifyResult{Algorithm: alg, Entries: results}
	for _, er := range results {
		switch er.Status {
		case StatusOK:
			res.OK++
		case StatusMismatch:
			res.Mismatches++
		case StatusMissing:
			res.Missing++
		}
	}
	return res, nil
}

func verifyEntry(m *manifest.Manifest, e manifest.Record, alg checksum.Algorithm, opts VerifyOptions, stats *metrics.Stats) EntryResult {
	res := EntryResult{Path: e.Path, Expected: e.Digest}
	res.Resolved = m.ResolvePath(e.Path)

	info, err := os.Stat(res.Resolved)
	if err != nil {
		res.Status = StatusMissing
		res.Err = err
		return res
	}

	if opts.Quick && e.Size > 0 && info.Size() != e.Size {
		res.Status = StatusMismatch
		return res
	}

	computed, err := checksum.FileHex(res.Resolved, alg, opts.ChunkSize, func(n int64) {
		atomic.AddInt64(&stats.BytesHashed, n)
	})
	if err != nil {
		res.Status = StatusMissing
		res.Err = err
		return res
	}
	res.Computed = computed

	if strings.EqualFold(computed, strings.TrimSpace(e.Digest)) {
		res.Status = StatusOK
	} else {
		res.Status = StatusMismatch
	}
	return res
}

// VerifyFile loads the manifest at path and verifies it. An unreadable
// manifest file aborts the task with no partial result.
func VerifyFile(ctx context.Context, path string, mopts manifest.Options, opts VerifyOptions, stats *metrics.Stats, notify ProgressFunc) (*VerifyResult, error) {
	m, err := manifest.Load(path, mopts)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if m.Len() == 0 && len(m.Malformed) > 0 {
		return nil, fmt.Errorf("verify %s: %w: no parseable entries", path, manifest.ErrMalformed)
	}
	return Verify(ctx, m, opts, stats, notify)
}
