package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newKnowledgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage knowledge base entries",
	}
	cmd.AddCommand(newKnowledgeSaveCmd(a))
	return cmd
}

func newKnowledgeSaveCmd(a *app) *cobra.Command {
	var (
		notes    string
		severity string
		summary  string
	)

	cmd := &cobra.Command{
		Use:   "save <entryID>",
		Short: "Save a past analysis to the knowledge base",
		Long: `Derive a knowledge draft from a history entry, apply the given overrides and
submit it to the analysis service's knowledge base.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			s := e.newSession(a)
			defer s.Close()

			if _, err := s.LoadHistoryEntry(id); err != nil {
				return err
			}
			if err := s.Draft.Open(); err != nil {
				return err
			}

			fields := s.Draft.Snapshot().Fields
			fields.Notes = notes
			if severity != "" {
				fields.Severity = severity
			}
			if summary != "" {
				fields.ExecutiveSummary = summary
			}
			if err := s.Draft.Edit(fields); err != nil {
				return err
			}

			if _, err := s.Draft.Submit(cmd.Context()); err != nil {
				if msg := s.Draft.Snapshot().SaveError; msg != "" {
					return errors.New(msg)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), s.Draft.Snapshot().SaveMessage)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes")
	cmd.Flags().StringVar(&severity, "severity", "", "Override the severity")
	cmd.Flags().StringVar(&summary, "summary", "", "Override the executive summary")
	return cmd
}
