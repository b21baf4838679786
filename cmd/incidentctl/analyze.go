package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/incidentdesk/internal/render"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		description string
		logLine     string
		logFile     string
		showRaw     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an incident description and log excerpt",
		Long: `Submit an incident for root-cause analysis. At least one of --description and
--log (or --log-file) is required. The result is recorded in the history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logLine != "" && logFile != "" {
				return errors.New("use either --log or --log-file, not both")
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			s := e.newSession(a)
			defer s.Close()

			if logFile != "" {
				if err := ingestFile(s.Controller.IngestLogFile, logFile); err != nil {
					if msg := s.Controller.Snapshot().FileError; msg != "" {
						return errors.New(msg)
					}
					return err
				}
				logLine = s.Controller.Snapshot().LogLine
			}

			if err := s.Controller.SetInput(description, logLine); err != nil {
				return err
			}

			entry, err := s.Controller.SubmitAnalysis(cmd.Context())
			if err != nil {
				if msg := s.Controller.Snapshot().ErrorMessage; msg != "" {
					return errors.New(msg)
				}
				return err
			}

			out := cmd.OutOrStdout()
			render.Analysis(out, entry.Response, render.Options{ShowRaw: showRaw})
			fmt.Fprintf(out, "\nSaved to history as #%d\n", entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Incident description")
	cmd.Flags().StringVarP(&logLine, "log", "l", "", "Log line or excerpt")
	cmd.Flags().StringVarP(&logFile, "log-file", "f", "", "Read the log excerpt from a file (max 2 MB)")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "Also print the raw model output")
	return cmd
}

func ingestFile(ingest func(name string, size int64, r io.Reader) error, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	return ingest(filepath.Base(path), info.Size(), f)
}
