package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmind/cortex/internal/bootstrap"
	"github.com/localmind/cortex/internal/config"
	"github.com/localmind/cortex/internal/permission"
)

var (
	runSession string
	runTitle   string
	runDir     string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one message to the assistant and print its reply",
	Long: `Start (or continue) a session with the given message, run it
through the dual-model orchestrator or the single-model agent loop, and
print the reply.

Examples:
  assistantd run "What files changed in the last commit?"
  assistantd run --session sess_123 "Now revert that"`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to continue")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Session title")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

func runInteractive(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: assistantd run \"your message\"")
	}

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
	defer app.Shutdown(ctx)

	sessionID := runSession
	if sessionID == "" {
		sess, err := app.Store.NewSession(app.SystemPrompt())
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		sessionID = sess.ID
		if runTitle != "" {
			if err := app.Store.SetTitle(sessionID, runTitle); err != nil {
				return fmt.Errorf("setting session title: %w", err)
			}
		}
	}

	fmt.Printf("Session %s\n\n", sessionID)

	reply, err := app.Dispatch(ctx, sessionID, message, permission.DefaultAgentPermissions())
	if err != nil {
		return fmt.Errorf("processing error: %w", err)
	}

	if reply != "" {
		fmt.Println(reply)
	}
	fmt.Println()
	return nil
}
