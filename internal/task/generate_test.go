package task

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestGenerate_CRC32Scenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	writeFile(t, dir, "b.txt", []byte("world"))

	stats := &metrics.Stats{}
	res, err := Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: checksum.CRC32,
		BaseDir:   dir,
		Workers:   2,
	}, stats, nil)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	var buf bytes.Buffer
	require.NoError(t, res.Manifest.Serialize(&buf, manifest.StyleRelative))
	assert.Equal(t, "a.txt 3610a686\nb.txt 3a771143\n", buf.String())

	assert.Equal(t, int64(2), atomic.LoadInt64(&stats.Processed))
	assert.Equal(t, int64(2), atomic.LoadInt64(&stats.Total))
}

func TestGenerate_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.bin", bytes.Repeat([]byte{0xAB}, 4096))
	writeFile(t, dir, "two.bin", bytes.Repeat([]byte{0xCD}, 8192))
	writeFile(t, dir, "sub/three.bin", []byte("nested"))

	render := func() string {
		res, err := Generate(context.Background(), []string{dir}, GenerateOptions{
			Algorithm: checksum.SHA256,
			BaseDir:   dir,
			Workers:   4,
		}, &metrics.Stats{}, nil)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, res.Manifest.Serialize(&buf, manifest.StyleRelative))
		return buf.String()
	}

	first := render()
	second := render()
	assert.Equal(t, first, second, "unchanged file set must yield byte-identical manifests")
}

func TestGenerate_PerFileErrorsDoNotAbort(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", []byte("hello"))
	missing := filepath.Join(dir, "gone.txt")

	stats := &metrics.Stats{}
	res, err := Generate(context.Background(), []string{good, missing}, GenerateOptions{
		Algorithm: checksum.CRC32,
		BaseDir:   dir,
		Workers:   2,
	}, stats, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Manifest.Len())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, missing, res.Errors[0].Path)
	assert.ErrorIs(t, res.Errors[0], os.ErrNotExist)
	assert.Equal(t, int64(1), atomic.LoadInt64(&stats.EntryErrors))
}

func TestGenerate_ExcludeByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", []byte("keep"))
	writeFile(t, dir, "drop.log", []byte("drop"))
	writeFile(t, dir, "drop.TMP", []byte("drop"))

	res, err := Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm:   checksum.CRC32,
		BaseDir:     dir,
		ExcludeExts: []string{"log", ".tmp"},
	}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	entries := res.Manifest.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(dir, "keep.txt"), entries[0].Path)
}

func TestGenerate_VerifyAfter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	writeFile(t, dir, "b.txt", []byte("world"))

	res, err := Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm:   checksum.SHA1,
		BaseDir:     dir,
		VerifyAfter: true,
	}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Verification)
	assert.True(t, res.Verification.Clean())
	assert.Equal(t, 2, res.Verification.OK)
}

func TestGenerate_UnsupportedAlgorithmFailsFast(t *testing.T) {
	_, err := Generate(context.Background(), []string{t.TempDir()}, GenerateOptions{
		Algorithm: checksum.Algorithm("ADLER32"),
	}, &metrics.Stats{}, nil)
	assert.ErrorIs(t, err, checksum.ErrUnsupportedAlgorithm)
}

func TestGenerate_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 64; i++ {
		writeFile(t, dir, filepath.Join("f", string(rune('a'+i%26))+".bin"), []byte{byte(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, []string{dir}, GenerateOptions{
		Algorithm: checksum.CRC32,
		BaseDir:   dir,
		Workers:   1,
	}, &metrics.Stats{}, nil)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestGenerate_ProgressMonotonic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		writeFile(t, dir, name+".txt", []byte(name))
	}

	// Progress callbacks are serialized by the task's emitter, so plain
	// variables are safe here.
	var last int64
	monotonic := true

	_, err := Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: checksum.CRC32,
		BaseDir:   dir,
		Workers:   4,
	}, &metrics.Stats{}, func(p Progress) {
		if p.Processed < last {
			monotonic = false
		}
		last = p.Processed
	})
	require.NoError(t, err)
	assert.True(t, monotonic)
	assert.Equal(t, int64(5), last)
}
