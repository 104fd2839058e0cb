package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"swiftsfv/internal/checksum"
	"swiftsfv/internal/session"
	"swiftsfv/internal/task"
)

func (a *app) compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <pathA> <pathB>",
		Short: "Compare two files or directory trees for equality",
		Long: "Compares two files by size and checksum, or two directory trees\n" +
			"recursively by relative path. Quick mode short-circuits on size and\n" +
			"uses CRC32; full mode always hashes, with SHA-1.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := task.CompareOptions{
				Workers:   a.cfg.Workers,
				ChunkSize: a.cfg.ChunkSize,
				Quick:     a.cfg.Quick,
			}
			if override := a.algorithmOverride(cmd); override != "" {
				alg, err := checksum.ParseAlgorithm(override)
				if err != nil {
					return err
				}
				opts.Algorithm = alg
			}

			h := a.runner.Compare(cmd.Context(), args[0], args[1], opts)
			res, err := await(h, "comparing", !a.noProgress)
			if err != nil {
				return err
			}

			renderCompare(cmd.OutOrStdout(), res)
			renderStats(cmd.ErrOrStderr(), h.Stats())

			snap := h.Stats()
			a.sess.AddHistory(session.HistoryEntry{
				Kind:       "compare",
				Inputs:     []string{args[0], args[1]},
				Summary:    fmt.Sprintf("%s, %d differences", res.Verdict, len(res.Differences)),
				DurationMs: snap.DurationMs,
				When:       time.Now(),
			})
			a.saveSession()

			if res.Verdict != task.Identical {
				return errors.New("paths are not identical")
			}
			return nil
		},
	}
	return cmd
}
