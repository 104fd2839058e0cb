package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
)

// generateManifest builds a manifest for the directory's current
// contents, the way the verify-then-tamper tests need it.
func generateManifest(t *testing.T, dir string, alg checksum.Algorithm) *manifest.Manifest {
	t.Helper()
	res, err := Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: alg,
		BaseDir:   dir,
	}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	return res.Manifest
}

func statuses(res *VerifyResult) map[string]Status {
	out := make(map[string]Status, len(res.Entries))
	for _, e := range res.Entries {
		out[filepath.Base(e.Path)] = e.Status
	}
	return out
}

func TestVerify_AllOK(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	writeFile(t, dir, "b.txt", []byte("world"))
	m := generateManifest(t, dir, checksum.CRC32)

	stats := &metrics.Stats{}
	res, err := Verify(context.Background(), m, VerifyOptions{Workers: 2}, stats, nil)
	require.NoError(t, err)

	assert.True(t, res.Clean())
	assert.Equal(t, 2, res.OK)
	for _, e := range res.Entries {
		assert.Equal(t, StatusOK, e.Status, e.Path)
		assert.NotEmpty(t, e.Computed)
	}
}

func TestVerify_OneModifiedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	b := writeFile(t, dir, "b.txt", []byte("world"))
	m := generateManifest(t, dir, checksum.CRC32)

	require.NoError(t, os.WriteFile(b, []byte("World"), 0o600))

	res, err := Verify(context.Background(), m, VerifyOptions{Workers: 2}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	got := statuses(res)
	assert.Equal(t, StatusOK, got["a.txt"])
	assert.Equal(t, StatusMismatch, got["b.txt"])
	assert.Equal(t, 1, res.OK)
	assert.Equal(t, 1, res.Mismatches)
	assert.Equal(t, 0, res.Missing)
}

func TestVerify_DeletedFileIsMissing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("hello"))
	writeFile(t, dir, "b.txt", []byte("world"))
	m := generateManifest(t, dir, checksum.SHA1)

	require.NoError(t, os.Remove(a))

	res, err := Verify(context.Background(), m, VerifyOptions{}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	got := statuses(res)
	assert.Equal(t, StatusMissing, got["a.txt"])
	assert.Equal(t, StatusOK, got["b.txt"])

	for _, e := range res.Entries {
		if e.Status == StatusMissing {
			assert.ErrorIs(t, e.Err, os.ErrNotExist)
		}
	}
}

func TestVerify_ConcurrencyInvariance(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, string(rune('a'+i))+".bin", []byte{byte(i), byte(i + 1)})
	}
	m := generateManifest(t, dir, checksum.SHA256)

	// Tamper with two files, delete one.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte("tampered"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.bin"), []byte("tampered"), 0o600))
	require.NoError(t, os.Remove(filepath.Join(dir, "p.bin")))

	single, err := Verify(context.Background(), m, VerifyOptions{Workers: 1}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	many, err := Verify(context.Background(), m, VerifyOptions{Workers: 8}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	assert.Equal(t, statuses(single), statuses(many))
	assert.Equal(t, single.OK, many.OK)
	assert.Equal(t, single.Mismatches, many.Mismatches)
	assert.Equal(t, single.Missing, many.Missing)
}

func TestVerify_ResultsInManifestOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{"z.txt", "a.txt", "m.txt"}
	for _, n := range names {
		writeFile(t, dir, n, []byte(n))
	}

	m := manifest.New(checksum.CRC32, manifest.DelimiterSpace, dir)
	for _, n := range names {
		digest, err := checksum.FileHex(filepath.Join(dir, n), checksum.CRC32, 0, nil)
		require.NoError(t, err)
		m.AddEntry(n, digest, 0)
	}

	res, err := Verify(context.Background(), m, VerifyOptions{Workers: 4}, &metrics.Stats{}, nil)
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	for i, n := range names {
		assert.Equal(t, n, res.Entries[i].Path)
	}
}

func TestVerify_CaseInsensitiveDigests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))

	m := manifest.New(checksum.CRC32, manifest.DelimiterSpace, dir)
	m.AddEntry("a.txt", "3610A686", 0) // legacy uppercase manifest

	res, err := Verify(context.Background(), m, VerifyOptions{}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Entries[0].Status)
}

func TestVerify_RelativePathsResolveAgainstBaseDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/a.txt", []byte("hello"))

	sfv := filepath.Join(dir, "files.sfv")
	require.NoError(t, os.WriteFile(sfv, []byte("data/a.txt 3610a686\n"), 0o600))

	res, err := VerifyFile(context.Background(), sfv, manifest.Options{}, VerifyOptions{}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, StatusOK, res.Entries[0].Status)
	assert.Equal(t, filepath.Join(dir, "data/a.txt"), res.Entries[0].Resolved)
}

func TestVerify_QuickModeShortCircuitsOnSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))

	m := manifest.New(checksum.CRC32, manifest.DelimiterSpace, dir)
	// Recorded size disagrees with disk; quick mode must flag the entry
	// without computing a digest.
	m.AddEntry("a.txt", "3610a686", 3)

	res, err := Verify(context.Background(), m, VerifyOptions{Quick: true}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, StatusMismatch, res.Entries[0].Status)
	assert.Empty(t, res.Entries[0].Computed)

	// Full mode on the same manifest hashes and finds the content OK.
	full, err := Verify(context.Background(), m, VerifyOptions{}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, full.Entries[0].Status)
}

func TestVerify_UnsupportedAlgorithmFailsFast(t *testing.T) {
	m := manifest.New(checksum.Algorithm("ROT13"), manifest.DelimiterSpace, t.TempDir())
	m.AddEntry("a.txt", "abcd", 0)

	_, err := Verify(context.Background(), m, VerifyOptions{}, &metrics.Stats{}, nil)
	assert.ErrorIs(t, err, checksum.ErrUnsupportedAlgorithm)
}

func TestVerify_MalformedLinesSurfaceAsWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))

	var sb strings.Builder
	sb.WriteString("a.txt 3610a686\n")
	sb.WriteString("brokenline\n")
	sfv := filepath.Join(dir, "files.sfv")
	require.NoError(t, os.WriteFile(sfv, []byte(sb.String()), 0o600))

	m, err := manifest.Load(sfv, manifest.Options{})
	require.NoError(t, err)
	require.Len(t, m.Malformed, 1)

	stats := &metrics.Stats{}
	res, err := Verify(context.Background(), m, VerifyOptions{}, stats, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OK)
	assert.Equal(t, int64(1), stats.Snapshot().Malformed)
}

func TestVerifyFile_UnreadableManifestAborts(t *testing.T) {
	_, err := VerifyFile(context.Background(), filepath.Join(t.TempDir(), "nope.sfv"),
		manifest.Options{}, VerifyOptions{}, &metrics.Stats{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerify_AlgorithmOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))

	m := manifest.New(checksum.CRC32, manifest.DelimiterSpace, dir)
	m.AddEntry("a.txt", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", 0) // SHA-1 digest

	res, err := Verify(context.Background(), m, VerifyOptions{Algorithm: checksum.SHA1}, &metrics.Stats{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Entries[0].Status)
	assert.Equal(t, checksum.SHA1, res.Algorithm)
}
