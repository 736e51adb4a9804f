package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"vnchat/pkg/transport"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the backend's configured API keys",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		withBoundaryClient("cmd.keys", func(ctx context.Context, client *transport.Client, log *slog.Logger) {
			keys, err := client.APIKeys(ctx)
			if err != nil {
				log.Error("Failed to list API keys", "error", err)
				return
			}
			if len(keys) == 0 {
				fmt.Println("no API keys configured")
				return
			}

			names := make([]string, 0, len(keys))
			for name := range keys {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s: %s\n", name, maskKey(keys[name]))
			}
		})
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Store one API key on the backend",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withBoundaryClient("cmd.keys", func(ctx context.Context, client *transport.Client, log *slog.Logger) {
			if err := client.SetAPIKey(ctx, args[0], args[1]); err != nil {
				log.Error("Failed to store API key", "key", args[0], "error", err)
				return
			}
			log.Info("API key stored", "key", args[0])
		})
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd)
	rootCmd.AddCommand(keysCmd)
}

// maskKey keeps only a short suffix visible so listings stay safe to paste.
func maskKey(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
