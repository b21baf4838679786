package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/incidentdesk/internal/render"
	"github.com/spf13/cobra"
)

func parseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return id, nil
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <entryID> <question>",
		Short: "Ask a follow-up question about a past analysis",
		Long: `Ask a follow-up question in the context of a history entry. The question and
answer are appended to the entry's follow-up thread.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			question := strings.Join(args[1:], " ")

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

			answer, err := s.Thread.Ask(cmd.Context(), question)
			if err != nil {
				if msg := s.Thread.Snapshot().ErrorMessage; msg != "" {
					return errors.New(msg)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if a.verbose {
				render.Thread(out, s.Thread.Snapshot().Thread)
				return nil
			}
			fmt.Fprintln(out, answer)
			return nil
		},
	}
}
