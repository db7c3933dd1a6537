package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localmind/cortex/internal/bootstrap"
	"github.com/localmind/cortex/internal/config"
	"github.com/localmind/cortex/internal/logging"
	"github.com/localmind/cortex/pkg/types"
)

var serveDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant daemon as a headless foreground process",
	Long: `Start the assistant as a headless process: spawns configured
capability servers, loads the tool registry, and waits to be driven by
whatever front end talks to it (the JSON-RPC transport's own process, or
a future HTTP/IPC surface). Exits on SIGINT/SIGTERM after a graceful
shutdown of its capability servers.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	logging.Info().Str("version", Version).Msg("starting assistantd")
	logging.Info().Str("directory", workDir).Msg("working directory")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.ActiveModel = model
	}

	dbPath := filepath.Join(paths.StoragePath(), "conversations.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return err
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, appConfig, workDir, dbPath)
	if err != nil {
		return err
	}

	logging.Info().
		Int("toolCount", len(app.Registry.List())).
		Strs("servers", app.Supervisor.Names()).
		Msg("assistantd ready")

	watcher, err := config.WatchConfig(workDir, func(cfg *types.Config) {
		if model := GetGlobalModel(); model != "" {
			cfg.ActiveModel = model
		}
		app.ApplyConfig(cfg)
	})
	if err != nil {
		logging.Warn().Err(err).Msg("config hot-reload disabled: failed to start watcher")
	} else {
		defer watcher.Close()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down assistantd...")
	app.Shutdown(ctx)
	logging.Info().Msg("assistantd stopped")
	return nil
}
