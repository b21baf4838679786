package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/config"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/internal/session"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
	"github.com/spf13/cobra"
)

// app carries what commands need beyond their flags. Tests swap the constructors.
type app struct {
	verbose     bool
	analyzerURL string
	logger      *slog.Logger

	loadConfig  func() (*config.Config, error)
	openBackend func(ctx context.Context, cfg *config.Config) (history.Backend, error)
	newService  func(cfg *config.Config) models.AnalysisService
}

func defaultApp() *app {
	return &app{
		loadConfig:  config.Load,
		openBackend: history.OpenBackend,
		newService: func(cfg *config.Config) models.AnalysisService {
			return analyzer.NewHTTPClient(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "incidentctl",
		Short: "Analyze incidents and manage analysis history",
		Long: `incidentctl submits incident descriptions and log excerpts to the analysis
service, asks follow-up questions about past analyses, saves reviewed analyses to the
knowledge base and manages the local analysis history.

Configuration is read from the environment (ANALYZER_BASE_URL, HISTORY_BACKEND, ...).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.analyzerURL, "analyzer-url", "", "Analysis service base URL (overrides ANALYZER_BASE_URL)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newAskCmd(a),
		newKnowledgeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// env is the per-invocation wiring: config, the loaded history and its backend.
type env struct {
	cfg     *config.Config
	history *history.Store
	backend history.Backend
	logger  *slog.Logger
}

func (e *env) Close() error {
	return e.backend.Close()
}

// newSession starts a session against the analysis service.
func (e *env) newSession(a *app) *session.Session {
	return session.New(a.newService(e.cfg), e.history, session.WithLogger(e.logger))
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

// open loads config and history. A corrupted history is reported and continues empty.
func (a *app) open(ctx context.Context) (*env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.analyzerURL != "" {
		cfg.Analyzer.BaseURL = strings.TrimRight(a.analyzerURL, "/")
	}

	backend, err := a.openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	logger := a.log()
	hist := history.NewStore(backend, history.WithLogger(logger))
	if err := hist.Load(ctx); err != nil {
		if !errors.Is(err, history.ErrCorrupted) {
			backend.Close()
			return nil, fmt.Errorf("load history: %w", err)
		}
		logger.Warn("history was corrupted and has been reset", "error", err)
	}

	return &env{cfg: cfg, history: hist, backend: backend, logger: logger}, nil
}
