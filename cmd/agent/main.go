package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/api"
	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/config"
	"github.com/draftdesk/draftdesk-agent/internal/db"
	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/generate"
	"github.com/draftdesk/draftdesk-agent/internal/logging"
	"github.com/draftdesk/draftdesk-agent/internal/media"
	"github.com/draftdesk/draftdesk-agent/internal/store"
	"github.com/draftdesk/draftdesk-agent/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	envFile  string
	headless bool
	offline  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:           "draftdesk-agent",
		Short:         "Local agent for editing draft templates and generating drafts",
		Version:       config.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Use in-memory templates and a stub draft generator instead of the backend")
	root.Flags().BoolVar(&opts.headless, "headless", false, "Run without the system tray")

	root.AddCommand(newTemplateCmd(&opts))
	return root
}

// app holds what both the agent and the one-shot subcommands need.
type app struct {
	cfg      *config.EnvConfig
	logger   *slog.Logger
	database *db.DB
	repo     store.Repository
	settings store.Settings
	client   backend.Client
}

func openApp(opts options) (*app, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.headless {
		cfg.SetHeadless(true)
	}
	if opts.offline {
		cfg.SetOffline(true)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := store.NewRepository(database.Conn())

	settings, err := store.LoadSettings(context.Background(), repo, defaultSettings(cfg))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var client backend.Client
	if cfg.Offline() {
		logger.Warn("offline mode: templates are kept in memory and drafts are not generated")
		client = backend.NewStubClient(logger)
	} else {
		baseURL, err := backend.NormalizeBaseURL(settings.BackendURL)
		if err != nil {
			database.Close()
			return nil, err
		}
		client = backend.NewHTTPClient(baseURL, cfg.RequestTimeout(), logger)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     repo,
		settings: settings,
		client:   client,
	}, nil
}

func (a *app) Close() error {
	return a.database.Close()
}

func defaultSettings(cfg config.Config) store.Settings {
	return store.Settings{
		DraftFolder: cfg.DraftFolder(),
		BackendURL:  cfg.BackendURL(),
	}
}

func run(opts options) error {
	startTime := time.Now()

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	logger.Info("starting draftdesk agent", "version", config.Version, "data_dir", cfg.DataDir())

	authToken, err := store.EnsureAuthToken(context.Background(), a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}
	printBanner(cfg, a.settings, authToken)

	drafts := generate.NewService(a.repo, a.client.Drafts(), cfg.DraftFolder(), logger)

	var picker media.DirectoryPicker = media.CommandPicker{}
	if cfg.Headless() {
		picker = media.StaticPicker{Path: cfg.DraftFolder()}
	}

	lastDraftID, _ := drafts.LastDraftID(context.Background())

	var tray *ui.Tray
	if !cfg.Headless() {
		tray = ui.NewTray(ui.TrayConfig{
			Logger:      logging.WithComponent(logger, "tray"),
			DraftFolder: a.settings.DraftFolder,
			LastDraftID: lastDraftID,
		})
	}

	applySettings := func(s store.Settings) error {
		if hc, ok := a.client.(*backend.HTTPClient); ok && hc.BaseURL() != s.BackendURL {
			if err := hc.SetBaseURL(s.BackendURL); err != nil {
				return err
			}
		}
		if tray != nil {
			tray.UpdateDraftFolder(s.DraftFolder)
		}
		return nil
	}

	drafts.OnComplete(func(g *store.Generation) {
		if tray == nil {
			return
		}
		if g.Status == store.GenerationStatusSucceeded {
			tray.UpdateStatus("Idle")
			tray.UpdateLastDraft(g.DraftID)
		} else {
			tray.UpdateStatus("Error")
		}
	})

	defaults := defaultSettings(cfg)
	sessions := editor.NewRegistry()
	defer sessions.CloseAll()

	apiServer := api.NewServer(api.ServerConfig{
		Port:              cfg.Port(),
		Version:           config.Version,
		Offline:           cfg.Offline(),
		Templates:         a.client.Templates(),
		Drafts:            drafts,
		Store:             a.repo,
		Picker:            picker,
		Sessions:          sessions,
		Defaults:          defaults,
		OnSettingsChanged: applySettings,
		Logger:            logger,
		StartTime:         startTime,
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})

	if tray == nil {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray.SetHandlers(
			func() (string, error) {
				return chooseDraftFolder(gctx, picker, a.repo, defaults, applySettings)
			},
			cancel,
		)
		go func() {
			<-gctx.Done()
			tray.Quit()
		}()
		tray.Run()
		cancel()
	}

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("shutdown complete")
		return nil
	}
	return err
}

// chooseDraftFolder shows the folder dialog and stores the chosen folder.
// A cancelled dialog returns an empty path.
func chooseDraftFolder(ctx context.Context, picker media.DirectoryPicker, repo store.Repository, defaults store.Settings, apply func(store.Settings) error) (string, error) {
	path, err := picker.Pick(ctx, "Choose the draft folder")
	if errors.Is(err, media.ErrCancelled) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	settings, err := store.LoadSettings(ctx, repo, defaults)
	if err != nil {
		return "", err
	}
	settings.DraftFolder = path
	if err := store.SaveSettings(ctx, repo, settings); err != nil {
		return "", err
	}
	if err := apply(settings); err != nil {
		return "", err
	}
	return path, nil
}

func printBanner(cfg config.Config, settings store.Settings, authToken string) {
	backendURL := settings.BackendURL
	if cfg.Offline() {
		backendURL = "offline"
	}
	draftFolder := settings.DraftFolder
	if draftFolder == "" {
		draftFolder = "(not set)"
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  DRAFTDESK AGENT v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Printf("║  Backend:    %-45s║\n", truncate(backendURL, 45))
	fmt.Printf("║  Drafts:     %-45s║\n", truncate(draftFolder, 45))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
