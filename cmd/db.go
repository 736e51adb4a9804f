package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vnchat/pkg/config"
	"vnchat/pkg/logger"
	"vnchat/pkg/transport"

	"github.com/spf13/cobra"
)

var dbDropConfirmed bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the backend's stored data",
}

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all stored conversation data",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		withBoundaryClient("cmd.db", func(ctx context.Context, client *transport.Client, log *slog.Logger) {
			if err := client.ClearData(ctx); err != nil {
				log.Error("Failed to clear data", "error", err)
				return
			}
			log.Info("Stored data cleared")
		})
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the backend database outright",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		if !dbDropConfirmed {
			fmt.Println("refusing to drop the database without --yes")
			return
		}
		withBoundaryClient("cmd.db", func(ctx context.Context, client *transport.Client, log *slog.Logger) {
			if err := client.DropDatabase(ctx); err != nil {
				log.Error("Failed to drop database", "error", err)
				return
			}
			log.Info("Database dropped")
		})
	},
}

func init() {
	dbDropCmd.Flags().BoolVar(&dbDropConfirmed, "yes", false, "confirm the irreversible drop")
	dbCmd.AddCommand(dbClearCmd)
	dbCmd.AddCommand(dbDropCmd)
	rootCmd.AddCommand(dbCmd)
}

// withBoundaryClient handles the shared config/logger/client setup for the
// one-shot boundary commands.
func withBoundaryClient(component string, fn func(context.Context, *transport.Client, *slog.Logger)) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		return
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		return
	}
	slog.SetDefault(appLogger)
	log := slog.Default().With("component", component)

	addr := config.ResolveAddress(cfg, log)
	client := transport.NewClient(addr, time.Duration(cfg.Client.RequestTimeoutSeconds)*time.Second)

	fn(context.Background(), client, log)
}
