package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
)

func TestRunner_GenerateDeliversResultAndProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	writeFile(t, dir, "b.txt", []byte("world"))

	r := NewRunner(nil)
	h := r.Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: checksum.CRC32,
		BaseDir:   dir,
		Workers:   2,
	})

	var last int64
	for p := range h.Progress() {
		assert.GreaterOrEqual(t, p.Processed, last)
		assert.NotEmpty(t, p.Path)
		last = p.Processed
	}

	res, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Manifest.Len())

	snap := h.Stats()
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(2), snap.Total)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed after Wait returns")
	}
}

func TestRunner_VerifyHandle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	m := generateManifest(t, dir, checksum.SHA1)

	r := NewRunner(nil)
	h := r.Verify(context.Background(), m, VerifyOptions{})

	res, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, res.Clean())
}

func TestRunner_VerifyFileHandle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("hello"))
	m := generateManifest(t, dir, checksum.CRC32)
	sfv := dir + "/files.sfv"
	require.NoError(t, m.Save(sfv, manifest.StyleRelative))

	r := NewRunner(nil)
	h := r.VerifyFile(context.Background(), sfv, manifest.Options{}, VerifyOptions{})

	res, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, res.OK)
}

func TestRunner_CompareHandle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", []byte("same"))
	b := writeFile(t, dir, "b.bin", []byte("same"))

	r := NewRunner(nil)
	h := r.Compare(context.Background(), a, b, CompareOptions{})

	res, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, Identical, res.Verdict)
}

func TestRunner_CancelResolvesToErrCancelled(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 40; i++ {
		writeFile(t, dir, string(rune('a'+i%26))+"/f.bin", []byte{byte(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before submission: no file may be scheduled

	r := NewRunner(nil)
	h := r.Generate(ctx, []string{dir}, GenerateOptions{
		Algorithm: checksum.SHA512,
		BaseDir:   dir,
		Workers:   1,
	})

	_, err := h.Wait()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRunner_CancelViaHandle(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 26; i++ {
		writeFile(t, dir, string(rune('a'+i))+".bin", []byte{byte(i)})
	}

	r := NewRunner(nil)
	h := r.Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: checksum.SHA256,
		BaseDir:   dir,
		Workers:   1,
	})
	h.Cancel()

	// Either the task won the race and finished, or it observed the
	// cancellation; both resolve the handle exactly once.
	res, err := h.Wait()
	if err != nil {
		assert.ErrorIs(t, err, ErrCancelled)
	} else {
		assert.NotNil(t, res)
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("handle did not resolve")
	}
}

// Stats polling from another goroutine must stay safe across the moment
// the task resolves and freezes its clock.
func TestRunner_StatsSafeWhileRunning(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 26; i++ {
		writeFile(t, dir, string(rune('a'+i))+".bin", []byte{byte(i)})
	}

	r := NewRunner(nil)
	h := r.Generate(context.Background(), []string{dir}, GenerateOptions{
		Algorithm: checksum.SHA256,
		BaseDir:   dir,
		Workers:   4,
	})

	for {
		snap := h.Stats()
		assert.GreaterOrEqual(t, snap.DurationMs, int64(0))
		assert.LessOrEqual(t, snap.Processed, snap.Total)

		select {
		case <-h.Done():
			_, err := h.Wait()
			require.NoError(t, err)
			assert.Equal(t, int64(26), h.Stats().Processed)
			return
		default:
		}
	}
}

func TestRunner_ProgressChannelClosesOnError(t *testing.T) {
	r := NewRunner(nil)
	h := r.VerifyFile(context.Background(), t.TempDir()+"/absent.sfv", manifest.Options{}, VerifyOptions{})

	for range h.Progress() {
	}
	_, err := h.Wait()
	require.Error(t, err)
}
