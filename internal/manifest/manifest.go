// Package manifest reads and writes SFV checksum-list files.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"swiftsfv/internal/checksum"
)

// PathStyle selects how entry paths are rendered at serialization time.
type PathStyle string

const (
	StyleRelative PathStyle = "relative"
	StyleAbsolute PathStyle = "absolute"
)

const (
	// DefaultComment is the marker that opens a comment line.
	DefaultComment = ";"

	DelimiterSpace = " "
	DelimiterTab   = "\t"
)

// ErrMalformed indicates a manifest that yielded no usable entries.
var ErrMalformed = errors.New("malformed manifest")

// Record is one line of a manifest: either a verbatim comment or a
// path+digest entry. Size is known only for entries produced by an
// in-process generation run and is never serialized.
type Record struct {
	Comment string
	Path    string
	Digest  string
	Size    int64
}

// IsComment reports whether the record is a comment line.
func (r Record) IsComment() bool { return r.Comment != "" }

// MalformedLine is a line that could not be split into path and digest.
type MalformedLine struct {
	Line int
	Text string
}

// Options configure parsing and construction.
type Options struct {
	Algorithm checksum.Algorithm
	Delimiter string
	Comment   string
}

func (o Options) delimiter() string {
	if o.Delimiter == "" {
		return DelimiterSpace
	}
	return o.Delimiter
}

func (o Options) comment() string {
	if o.Comment == "" {
		return DefaultComment
	}
	return o.Comment
}

// Manifest is an ordered checksum list plus the metadata needed to
// resolve and re-render it.
type Manifest struct {
	Algorithm checksum.Algorithm
	Delimiter string
	Comment   string
	BaseDir   string

	Records   []Record
	Malformed []MalformedLine
}

// New returns an empty manifest with the given metadata.
func New(alg checksum.Algorithm, delimiter, baseDir string) *Manifest {
	if delimiter == "" {
		delimiter = DelimiterSpace
	}
	return &Manifest{
		Algorithm: alg,
		Delimiter: delimiter,
		Comment:   DefaultComment,
		BaseDir:   baseDir,
	}
}

// AddEntry appends a path+digest entry.
func (m *Manifest) AddEntry(path, digest string, size int64) {
	m.Records = append(m.Records, Record{Path: path, Digest: digest, Size: size})
}

// AddComment appends a comment line, prefixing the marker if absent.
func (m *Manifest) AddComment(text string) {
	marker := m.Comment
	if marker == "" {
		marker = DefaultComment
	}
	if !strings.HasPrefix(text, marker) {
		text = marker + " " + text
	}
	m.Records = append(m.Records, Record{Comment: text})
}

// Entries returns the non-comment records in order.
func (m *Manifest) Entries() []Record {
	out := make([]Record, 0, len(m.Records))
	for _, r := range m.Records {
		if !r.IsComment() {
			out = append(out, r)
		}
	}
	return out
}

// Len is the number of path+digest entries.
func (m *Manifest) Len() int {
	n := 0
	for _, r := range m.Records {
		if !r.IsComment() {
			n++
		}
	}
	return n
}

// ResolvePath resolves an entry path against the manifest's base directory.
func (m *Manifest) ResolvePath(p string) string {
	if filepath.IsAbs(p) || m.BaseDir == "" {
		return p
	}
	return filepath.Join(m.BaseDir, p)
}

// Parse reads a manifest line by line. Comment lines are preserved
// verbatim, blank lines skipped, and every other line is split on the
// LAST occurrence of the delimiter so paths containing the delimiter
// survive. Lines without the delimiter are collected in Malformed;
// one bad line never invalidates the rest.
func Parse(r io.Reader, opts Options) (*Manifest, error) {
	m := &Manifest{
		Algorithm: opts.Algorithm,
		Delimiter: opts.delimiter(),
		Comment:   opts.comment(),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, m.Comment) {
			m.Records = append(m.Records, Record{Comment: raw})
			continue
		}

		// Trailing whitespace must not become the split point when the
		// delimiter itself is whitespace.
		line := raw
		if m.Delimiter == DelimiterSpace || m.Delimiter == DelimiterTab {
			line = strings.TrimRight(line, " \t")
		}

		idx := strings.LastIndex(line, m.Delimiter)
		if idx <= 0 {
			m.Malformed = append(m.Malformed, MalformedLine{Line: lineNo, Text: raw})
			continue
		}
		path := line[:idx]
		if m.Delimiter == DelimiterSpace || m.Delimiter == DelimiterTab {
			path = strings.TrimRight(path, " \t")
		}
		digest := strings.TrimSpace(line[idx+len(m.Delimiter):])
		if path == "" || digest == "" {
			m.Malformed = append(m.Malformed, MalformedLine{Line: lineNo, Text: raw})
			continue
		}
		m.Records = append(m.Records, Record{Path: path, Digest: digest})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	// No algorithm configured: take the digest length of the first entry
	// as a hint.
	if m.Algorithm == "" {
		for _, r := range m.Records {
			if r.IsComment() {
				continue
			}
			if alg, ok := checksum.HintFromLength(len(r.Digest)); ok {
				m.Algorithm = alg
			}
			break
		}
	}

	return m, nil
}

// Load parses the manifest file at path. The manifest's base directory is
// set to the file's directory so relative entries resolve against it.
func Load(path string, opts Options) (*Manifest, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	m, err := Parse(f, opts)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path %s: %w", path, err)
	}
	m.BaseDir = filepath.Dir(abs)
	return m, nil
}

// Serialize writes the manifest, one line per record in insertion order.
// The path style is applied here, not at collection time, so the same
// in-memory entries can be re-rendered under either style.
func (m *Manifest) Serialize(w io.Writer, style PathStyle) error {
	bw := bufio.NewWriter(w)
	for _, r := range m.Records {
		var line string
		if r.IsComment() {
			line = r.Comment
		} else {
			line = m.renderPath(r.Path, style) + m.Delimiter + r.Digest
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Save serializes the manifest to a file.
func (m *Manifest) Save(path string, style PathStyle) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}
	if err := m.Serialize(f, style); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest %s: %w", path, err)
	}
	return nil
}

func (m *Manifest) renderPath(p string, style PathStyle) string {
	switch style {
	case StyleAbsolute:
		if !filepath.IsAbs(p) && m.BaseDir != "" {
			return filepath.Join(m.BaseDir, p)
		}
	case StyleRelative:
		if filepath.IsAbs(p) && m.BaseDir != "" {
			if rel, err := filepath.Rel(m.BaseDir, p); err == nil {
				return rel
			}
		}
	}
	return p
}
