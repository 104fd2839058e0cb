// Package checksum computes file digests for integrity checking.
package checksum

import (
	"crypto/md5"  // #nosec G501 -- used for file integrity verification only
	"crypto/sha1" // #nosec G505 -- used for file integrity verification only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a registered digest function.
type Algorithm string

const (
	CRC32   Algorithm = "CRC32"
	MD5     Algorithm = "MD5"
	SHA1    Algorithm = "SHA1"
	SHA224  Algorithm = "SHA224"
	SHA256  Algorithm = "SHA256"
	SHA384  Algorithm = "SHA384"
	SHA512  Algorithm = "SHA512"
	SHA3256 Algorithm = "SHA3-256"
	SHA3512 Algorithm = "SHA3-512"
	BLAKE2b Algorithm = "BLAKE2B"
	BLAKE2s Algorithm = "BLAKE2S"
)

// ErrUnsupportedAlgorithm is returned for algorithms not in the registry.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

var registry = map[Algorithm]func() hash.Hash{
	CRC32:   func() hash.Hash { return crc32.NewIEEE() },
	MD5:     md5.New,  // #nosec G401 -- used for file integrity verification only
	SHA1:    sha1.New, // #nosec G401 -- used for file integrity verification only
	SHA224:  sha256.New224,
	SHA256:  sha256.New,
	SHA384:  sha512.New384,
	SHA512:  sha512.New,
	SHA3256: sha3.New256,
	SHA3512: sha3.New512,
	BLAKE2b: func() hash.Hash {
		h, _ := blake2b.New512(nil) // keyless constructor never fails
		return h
	},
	BLAKE2s: func() hash.Hash {
		h, _ := blake2s.New256(nil) // keyless constructor never fails
		return h
	},
}

// New returns a fresh hasher for the algorithm.
func New(alg Algorithm) (hash.Hash, error) {
	mk, ok := registry[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return mk(), nil
}

// Supported reports whether the algorithm is registered.
func Supported(alg Algorithm) bool {
	_, ok := registry[alg]
	return ok
}

// Algorithms lists the registered algorithms in sorted order.
func Algorithms() []Algorithm {
	algs := make([]Algorithm, 0, len(registry))
	for a := range registry {
		algs = append(algs, a)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	return algs
}

// ParseAlgorithm normalizes a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	alg := Algorithm(strings.ToUpper(strings.TrimSpace(s)))
	switch alg {
	case "SHA-1":
		alg = SHA1
	case "SHA-256":
		alg = SHA256
	case "SHA3_256":
		alg = SHA3256
	case "SHA3_512":
		alg = SHA3512
	}
	if !Supported(alg) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// HintFromLength guesses the algorithm from a hex digest's length. It is
// only a hint: 64 hex digits could be SHA-256, SHA3-256 or BLAKE2s; the
// most common reading wins.
func HintFromLength(n int) (Algorithm, bool) {
	switch n {
	case 8:
		return CRC32, true
	case 32:
		return MD5, true
	case 40:
		return SHA1, true
	case 56:
		return SHA224, true
	case 64:
		return SHA256, true
	case 96:
		return SHA384, true
	case 128:
		return SHA512, true
	}
	return "", false
}

const (
	// DefaultChunkSize is the read buffer size used when none is configured.
	DefaultChunkSize = 1 << 20 // 1 MiB
	minChunkSize     = 4 << 10 // 4 KiB
)

// FileHex computes the lowercase hex digest of the file at path, reading it
// in chunkSize blocks so memory stays bounded regardless of file size.
// onProgress, when non-nil, receives byte counts as data is consumed.
func FileHex(path string, alg Algorithm, chunkSize int, onProgress func(n int64)) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	switch {
	case chunkSize <= 0:
		chunkSize = DefaultChunkSize
	case chunkSize < minChunkSize:
		chunkSize = minChunkSize
	}
	buf := make([]byte, chunkSize)

	var pending int64
	flush := func() {
		if pending > 0 && onProgress != nil {
			onProgress(pending)
			pending = 0
		}
	}

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
			pending += int64(n)
			if pending >= int64(chunkSize) {
				flush()
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("read %s: %w", path, rerr)
		}
	}
	flush()

	return hex.EncodeToString(h.Sum(nil)), nil
}
