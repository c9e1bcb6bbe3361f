package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ether/collabpads-go/lib/server"
	settings2 "github.com/ether/collabpads-go/lib/settings"
	"github.com/ether/collabpads-go/lib/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "collabpads",
	Short: "Collaboration hub for shared document editing sessions",
	Long: `CollabPads keeps one editing session per document, relays changes between the
authors connected to it and replays the session history to late joiners.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	bootLogger := utils.SetupLogger("info")
	settings, err := settings2.InitSettings(bootLogger)
	if err != nil {
		return err
	}
	_ = bootLogger.Sync()

	setupLogger := utils.SetupLogger(settings.LogLevel)
	defer setupLogger.Sync()

	err = server.InitServer(ctx, setupLogger, settings)
	if errors.Is(err, context.Canceled) {
		setupLogger.Info("Shutting down")
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(settings2.ConfigCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
