package task

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/metrics"
)

// Verdict is the outcome of comparing two paths.
type Verdict int

const (
	Identical Verdict = iota
	Different
	TypeMismatch
)

func (v Verdict) String() string {
	switch v {
	case Identical:
		return "IDENTICAL"
	case Different:
		return "DIFFERENT"
	case TypeMismatch:
		return "TYPE_MISMATCH"
	}
	return "UNKNOWN"
}

// DiffKind says why a path appears in the difference list.
type DiffKind int

const (
	OnlyInA DiffKind = iota
	OnlyInB
	ContentDiffers
)

func (k DiffKind) String() string {
	switch k {
	case OnlyInA:
		return "only in A"
	case OnlyInB:
		return "only in B"
	case ContentDiffers:
		return "content differs"
	}
	return "unknown"
}

// Difference is one divergence between the two trees, keyed by the path
// relative to each root.
type Difference struct {
	Path string
	Kind DiffKind
}

// CompareOptions configure a comparison run.
type CompareOptions struct {
	Workers   int
	ChunkSize int

	// Quick skips hashing when sizes already differ and uses CRC32 as
	// the reference digest; full mode uses SHA-1 and always hashes.
	Quick bool

	// Algorithm overrides the mode's reference digest.
	Algorithm checksum.Algorithm
}

func (o CompareOptions) algorithm() checksum.Algorithm {
	if o.Algorithm != "" {
		return o.Algorithm
	}
	if o.Quick {
		return checksum.CRC32
	}
	return checksum.SHA1
}

// CompareResult is the verdict for two paths plus the itemized
// differences when they diverge.
type CompareResult struct {
	PathA, PathB string
	Verdict      Verdict
	Differences  []Difference
}

// Compare determines structural and content equality of two paths.
// Two files compare by size then digest; two directories compare as a
// merged view of both trees keyed by relative path; a file against a
// directory is a type mismatch with no comparison attempted.
func Compare(ctx context.Context, pathA, pathB string, opts CompareOptions, stats *metrics.Stats, notify ProgressFunc) (*CompareResult, error) {
	alg := opts.algorithm()
	if !checksum.Supported(alg) {
		return nil, fmt.Errorf("compare: %w: %q", checksum.ErrUnsupportedAlgorithm, alg)
	}

	infoA, err := os.Stat(pathA)
	if err != nil {
		return nil, fmt.Errorf("compare: stat %s: %w", pathA, err)
	}
	infoB, err := os.Stat(pathB)
	if err != nil {
		return nil, fmt.Errorf("compare: stat %s: %w", pathB, err)
	}

	res := &CompareResult{PathA: pathA, PathB: pathB}

	if infoA.IsDir() != infoB.IsDir() {
		res.Verdict = TypeMismatch
		return res, nil
	}

	if !infoA.IsDir() {
		atomic.StoreInt64(&stats.Total, 1)
		same, err := sameContent(pathA, pathB, infoA.Size(), infoB.Size(), alg, opts, stats)
		if err != nil {
			return nil, fmt.Errorf("compare: %w", err)
		}
		atomic.AddInt64(&stats.Processed, 1)
		if notify != nil {
			notify(Progress{Processed: 1, Total: 1, Path: pathA})
		}
		if same {
			res.Verdict = Identical
			atomic.AddInt64(&stats.OK, 1)
		} else {
			res.Verdict = Different
			res.Differences = []Difference{{Path: filepath.Base(pathA), Kind: ContentDiffers}}
			atomic.AddInt64(&stats.Mismatches, 1)
		}
		return res, nil
	}

	treeA, err := walkTree(pathA)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	treeB, err := walkTree(pathB)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	keys := mergeKeys(treeA, treeB)
	total := int64(len(keys))
	atomic.StoreInt64(&stats.Total, total)

	emitter := &progressEmitter{fn: notify}

	type slot struct {
		diff Difference
		set  bool
		err  error
	}
	slots := make([]slot, len(keys))

	workers := poolSize(opts.Workers)
	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			rel := keys[i]
			sizeA, inA := treeA[rel]
			sizeB, inB := treeB[rel]

			switch {
			case inA && !inB:
				slots[i] = slot{diff: Difference{Path: rel, Kind: OnlyInA}, set: true}
				atomic.AddInt64(&stats.Missing, 1)
			case !inA && inB:
				slots[i] = slot{diff: Difference{Path: rel, Kind: OnlyInB}, set: true}
				atomic.AddInt64(&stats.Missing, 1)
			default:
				same, err := sameContent(
					filepath.Join(pathA, rel), filepath.Join(pathB, rel),
					sizeA, sizeB, alg, opts, stats,
				)
				if err != nil {
					slots[i] = slot{err: err}
				} else if same {
					atomic.AddInt64(&stats.OK, 1)
				} else {
					slots[i] = slot{diff: Difference{Path: rel, Kind: ContentDiffers}, set: true}
					atomic.AddInt64(&stats.Mismatches, 1)
				}
			}

			processed := atomic.AddInt64(&stats.Processed, 1)
			emitter.emit(Progress{Processed: processed, Total: total, Path: rel})
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	interrupted := false
feed:
	for i := range keys {
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
		return nil, fmt.Errorf("compare: %w", cancelled(ctx))
	}

	for _, s := range slots {
		if s.err != nil {
			return nil, fmt.Errorf("compare: %w", s.err)
		}
		if s.set {
			res.Differences = append(res.Differences, s.diff)
		}
	}

	if len(res.Differences) == 0 {
		res.Verdict = Identical
	} else {
		res.Verdict = Different
	}
	return res, nil
}

func sameContent(pathA, pathB string, sizeA, sizeB int64, alg checksum.Algorithm, opts CompareOptions, stats *metrics.Stats) (bool, error) {
	if opts.Quick && sizeA != sizeB {
		return false, nil
	}

	onBytes := func(n int64) {
		atomic.AddInt64(&stats.BytesHashed, n)
	}
	digestA, err := checksum.FileHex(pathA, alg, opts.ChunkSize, onBytes)
	if err != nil {
		return false, err
	}
	digestB, err := checksum.FileHex(pathB, alg, opts.ChunkSize, onBytes)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(digestA, digestB), nil
}

// walkTree enumerates the regular files under root, keyed by
// slash-normalized path relative to root, with file sizes as values.
func walkTree(root string) (map[string]int64, error) {
	tree := make(map[string]int64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return tree, nil
}

func mergeKeys(a, b map[string]int64) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
