package task

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
)

// GenerateOptions configure a manifest generation run.
type GenerateOptions struct {
	Algorithm checksum.Algorithm
	BaseDir   string
	Delimiter string

	// ExcludeExts filters files out before digesting, by extension
	// (with or without the leading dot, case-insensitive).
	ExcludeExts []string

	Workers   int
	ChunkSize int

	// VerifyAfter re-verifies the freshly built manifest against disk,
	// catching reads raced by concurrent modification.
	VerifyAfter bool
	Quick       bool
}

// GenerateResult is a built manifest plus the per-file failures that were
// excluded from its body.
type GenerateResult struct {
	Manifest *manifest.Manifest
	Errors   []EntryError

	// Verification is set only when VerifyAfter was requested.
	Verification *VerifyResult
}

// Generate walks the input file set, digests every file on a bounded
// worker pool and builds a manifest. Entry order follows the input:
// explicit files keep submission order, directories expand into a
// deterministic lexicographic walk, so an unchanged file set always
// yields an identical manifest.
func Generate(ctx context.Context, paths []string, opts GenerateOptions, stats *metrics.Stats, notify ProgressFunc) (*GenerateResult, error) {
	if !checksum.Supported(opts.Algorithm) {
		return nil, fmt.Errorf("generate: %w: %q", checksum.ErrUnsupportedAlgorithm, opts.Algorithm)
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		baseDir = wd
	}

	files, err := expand(paths, opts.ExcludeExts)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	total := int64(len(files))
	atomic.StoreInt64(&stats.Total, total)

	emitter := &progressEmitter{fn: notify}

	type outcome struct {
		digest string
		size   int64
		err    error
	}
	outs := make([]outcome, len(files))

	workers := poolSize(opts.Workers)
	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			path := files[i]

			info, err := os.Stat(path)
			if err != nil {
				outs[i] = outcome{err: err}
			} else {
				digest, err := checksum.FileHex(path, opts.Algorithm, opts.ChunkSize, func(n int64) {
					atomic.AddInt64(&stats.BytesHashed, n)
				})
				outs[i] = outcome{digest: digest, size: info.Size(), err: err}
			}

			processed := atomic.AddInt64(&stats.Processed, 1)
			emitter.emit(Progress{Processed: processed, Total: total, Path: path})
		}
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	interrupted := false
feed:
	for i := range files {
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
		return nil, fmt.Errorf("generate: %w", cancelled(ctx))
	}

	m := manifest.New(opts.Algorithm, opts.Delimiter, baseDir)
	res := &GenerateResult{Manifest: m}
	for i, path := range files {
		if outs[i].err != nil {
			res.Errors = append(res.Errors, EntryError{Path: path, Err: outs[i].err})
			atomic.AddInt64(&stats.EntryErrors, 1)
			continue
		}
		m.AddEntry(path, outs[i].digest, outs[i].size)
	}

	if opts.VerifyAfter {
		vstats := &metrics.Stats{}
		vstats.Start()
		vr, err := Verify(ctx, m, VerifyOptions{
			Workers:   opts.Workers,
			ChunkSize: opts.ChunkSize,
			Quick:     opts.Quick,
		}, vstats, nil)
		vstats.Stop()
		if err != nil {
			return nil, fmt.Errorf("generate: verify after: %w", err)
		}
		res.Verification = vr
	}

	return res, nil
}

// expand flattens the submitted paths into absolute file paths,
// recursing into directories and applying the extension filter.
func expand(paths []string, excludeExts []string) ([]string, error) {
	exclude := make(map[string]bool, len(excludeExts))
	for _, ext := range excludeExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exclude[ext] = true
	}
	skip := func(path string) bool {
		return exclude[strings.ToLower(filepath.Ext(path))]
	}

	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			// Unreadable submissions stay in the list; the worker's
			// stat turns them into per-entry errors instead of
			// aborting the whole batch.
			files = append(files, abs)
			continue
		}

		if !info.IsDir() {
			if !skip(abs) {
				files = append(files, abs)
			}
			continue
		}

		// WalkDir visits entries in lexical order, which keeps
		// directory expansion reproducible across runs.
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !skip(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return files, nil
}
