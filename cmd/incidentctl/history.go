package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kiranshivaraju/incidentdesk/internal/render"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show, clear or export the analysis history",
	}
	cmd.AddCommand(
		newHistoryListCmd(a),
		newHistoryShowCmd(a),
		newHistoryClearCmd(a),
		newHistoryExportCmd(a),
	)
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List past analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			render.HistoryList(cmd.OutOrStdout(), e.history.Entries())
			return nil
		},
	}
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var showRaw bool

	cmd := &cobra.Command{
		Use:   "show <entryID>",
		Short: "Show a past analysis and its follow-up thread",
		Args:  cobra.ExactArgs(1),
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

			entry, err := e.history.Get(id)
			if err != nil {
				return err
			}
			render.Entry(cmd.OutOrStdout(), entry, render.Options{ShowRaw: showRaw})
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRaw, "raw", false, "Also print the raw model output")
	return cmd
}

func newHistoryClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			n := e.history.Len()
			if err := e.history.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries.\n", n)
			return nil
		},
	}
}

func newHistoryExportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history to stdout as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q (use json or yaml)", format)
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return exportHistory(cmd.OutOrStdout(), format, e.history.Entries())
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}

func exportHistory(w io.Writer, format string, entries []models.HistoryEntry) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		enc.SetIndent(2)
		return enc.Encode(entries)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
}
