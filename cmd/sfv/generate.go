package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"swiftsfv/internal/session"
	"swiftsfv/internal/task"
)

func (a *app) generateCmd() *cobra.Command {
	var (
		output      string
		baseDir     string
		verifyAfter bool
		exclude     []string
	)

	cmd := &cobra.Command{
		Use:   "generate [paths...]",
		Short: "Compute checksums for files or directory trees and build a manifest",
		Long: "Computes a checksum for every submitted file (directories are walked\n" +
			"recursively in lexicographic order) and emits an SFV manifest. With no\n" +
			"arguments the file list from the saved session is reused.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = a.sess.Files
			}
			if len(paths) == 0 {
				return errors.New("no input paths given and no saved session file list")
			}

			excludeExts := a.cfg.Exclude
			if cmd.Flags().Changed("exclude") {
				excludeExts = exclude
			}

			opts := task.GenerateOptions{
				Algorithm:   a.cfg.AlgorithmTag(),
				BaseDir:     baseDir,
				Delimiter:   a.cfg.DelimiterString(),
				ExcludeExts: excludeExts,
				Workers:     a.cfg.Workers,
				ChunkSize:   a.cfg.ChunkSize,
				VerifyAfter: verifyAfter,
				Quick:       a.cfg.Quick,
			}

			h := a.runner.Generate(cmd.Context(), paths, opts)
			res, err := await(h, "hashing", !a.noProgress)
			if err != nil {
				return err
			}

			if output == "" {
				if err := res.Manifest.Serialize(cmd.OutOrStdout(), a.cfg.Style()); err != nil {
					return err
				}
			} else {
				if err := res.Manifest.Save(output, a.cfg.Style()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "manifest written to %s (%d entries)\n",
					output, res.Manifest.Len())
			}

			for _, ee := range res.Errors {
				warnColor.Fprintf(cmd.ErrOrStderr(), "error: %v\n", ee)
			}
			renderStats(cmd.ErrOrStderr(), h.Stats())

			if res.Verification != nil {
				renderVerify(cmd.ErrOrStderr(), res.Verification, nil)
			}

			snap := h.Stats()
			a.sess.Files = paths
			if output != "" {
				a.sess.LastManifest = output
			}
			a.sess.AddHistory(session.HistoryEntry{
				Kind:       "generate",
				Inputs:     paths,
				Summary:    fmt.Sprintf("%d entries, %d errors", res.Manifest.Len(), len(res.Errors)),
				OK:         res.Manifest.Len(),
				DurationMs: snap.DurationMs,
				When:       time.Now(),
			})
			a.saveSession()

			if res.Verification != nil && !res.Verification.Clean() {
				return errors.New("post-generation verification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the manifest here instead of stdout")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "base directory for relative paths (default CWD)")
	cmd.Flags().BoolVar(&verifyAfter, "verify-after", false, "verify the manifest against disk right after building it")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "file extensions to skip (e.g. tmp,log)")

	return cmd
}
