package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/manifest"
	"swiftsfv/internal/session"
	"swiftsfv/internal/task"
)

func (a *app) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [manifest]",
		Short: "Verify files against an SFV manifest",
		Long: "Parses the manifest, recomputes each listed file's checksum and\n" +
			"classifies every entry OK, MISMATCH or MISSING. With no argument the\n" +
			"manifest path from the saved session is reused.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.sess.LastManifest
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no manifest given and no saved session manifest")
			}

			m, err := manifest.Load(path, manifest.Options{
				Delimiter: a.cfg.DelimiterString(),
				Comment:   a.cfg.CommentMarker,
			})
			if err != nil {
				return err
			}
			if m.Len() == 0 && len(m.Malformed) > 0 {
				return fmt.Errorf("%s: %w: no parseable entries", path, manifest.ErrMalformed)
			}
			// Algorithm precedence: explicit flag, then the digest-length
			// hint picked up at parse time, then the configured default.
			if override := a.algorithmOverride(cmd); override != "" {
				alg, err := checksum.ParseAlgorithm(override)
				if err != nil {
					return err
				}
				m.Algorithm = alg
			} else if m.Algorithm == "" {
				m.Algorithm = a.cfg.AlgorithmTag()
			}

			h := a.runner.Verify(cmd.Context(), m, task.VerifyOptions{
				Workers:   a.cfg.Workers,
				ChunkSize: a.cfg.ChunkSize,
				Quick:     a.cfg.Quick,
			})
			res, err := await(h, "verifying", !a.noProgress)
			if err != nil {
				return err
			}

			renderVerify(cmd.OutOrStdout(), res, m.Malformed)
			renderStats(cmd.ErrOrStderr(), h.Stats())

			snap := h.Stats()
			a.sess.LastManifest = path
			a.sess.AddHistory(session.HistoryEntry{
				Kind:       "verify",
				Inputs:     []string{path},
				Summary:    fmt.Sprintf("%d ok, %d mismatched, %d missing", res.OK, res.Mismatches, res.Missing),
				OK:         res.OK,
				Mismatches: res.Mismatches,
				Missing:    res.Missing,
				DurationMs: snap.DurationMs,
				When:       time.Now(),
			})
			a.saveSession()

			if !res.Clean() {
				return fmt.Errorf("verification failed: %d mismatched, %d missing", res.Mismatches, res.Missing)
			}
			return nil
		},
	}
	return cmd
}
