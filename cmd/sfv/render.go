package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"swiftsfv/internal/manifest"
	"swiftsfv/internal/metrics"
	"swiftsfv/internal/task"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	badColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// renderVerify prints the verification verdict, a table of every entry
// that did not classify OK, and any malformed-line warnings.
func renderVerify(w io.Writer, res *task.VerifyResult, malformed []manifest.MalformedLine) {
	for _, ml := range malformed {
		warnColor.Fprintf(w, "warning: line %d unparseable: %s\n", ml.Line, ml.Text)
	}

	if res.Mismatches > 0 || res.Missing > 0 {
		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"File", "Status", "Expected", "Computed"})
		for _, e := range res.Entries {
			if e.Status == task.StatusOK {
				continue
			}
			computed := e.Computed
			if e.Status == task.StatusMissing && e.Err != nil {
				computed = e.Err.Error()
			}
			tbl.AppendRow(table.Row{e.Path, e.Status.String(), e.Expected, computed})
		}
		tbl.Render()
	}

	if res.Clean() {
		okColor.Fprintf(w, "OK: all %d files verified (%s)\n", res.OK, res.Algorithm)
	} else {
		badColor.Fprintf(w, "FAILED: %d ok, %d mismatched, %d missing (%s)\n",
			res.OK, res.Mismatches, res.Missing, res.Algorithm)
	}
}

// renderCompare prints the comparison verdict and difference list.
func renderCompare(w io.Writer, res *task.CompareResult) {
	switch res.Verdict {
	case task.Identical:
		okColor.Fprintln(w, "IDENTICAL")
	case task.TypeMismatch:
		badColor.Fprintf(w, "TYPE_MISMATCH: one path is a file, the other a directory\n")
	case task.Different:
		for _, d := range res.Differences {
			fmt.Fprintf(w, "  %s: %s\n", d.Kind, d.Path)
		}
		badColor.Fprintf(w, "DIFFERENT: %d differences\n", len(res.Differences))
	}
}

// renderStats prints a run summary line.
func renderStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "processed %d/%d files, %s hashed in %s\n",
		snap.Processed, snap.Total,
		humanize.Bytes(uint64(snap.BytesHashed)), // #nosec G115 -- counter is non-negative
		time.Duration(snap.DurationMs)*time.Millisecond,
	)
}
