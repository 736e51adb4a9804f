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

var (
	sceneSessionID  string
	sceneBackground string
	sceneSprite     string
	sceneTheme      string
)

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Show or change the scene decorations",
	Long:  "Prints the session's background, sprite, avatar names, and theme. Flags update individual decorations instead.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

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
		log := slog.Default().With("component", "cmd.scene")

		sessionID := sceneSessionID
		if sessionID == "" {
			sessionID = cfg.Client.SessionID
		}

		addr := config.ResolveAddress(cfg, log)
		client := transport.NewClient(addr, time.Duration(cfg.Client.RequestTimeoutSeconds)*time.Second)
		ctx := context.Background()

		if sceneBackground != "" || sceneSprite != "" || sceneTheme != "" {
			updateScene(ctx, client, sessionID, log)
			return
		}

		printScene(ctx, client, sessionID)
	},
}

func init() {
	sceneCmd.Flags().StringVarP(&sceneSessionID, "session", "s", "", "target session id (defaults to the configured session)")
	sceneCmd.Flags().StringVar(&sceneBackground, "background", "", "set the background image URL")
	sceneCmd.Flags().StringVar(&sceneSprite, "sprite", "", "set the character sprite URL")
	sceneCmd.Flags().StringVar(&sceneTheme, "theme", "", "set the UI theme name")
	rootCmd.AddCommand(sceneCmd)
}

func updateScene(ctx context.Context, client *transport.Client, sessionID string, log *slog.Logger) {
	if sceneBackground != "" {
		if err := client.SetBackground(ctx, sessionID, sceneBackground); err != nil {
			log.Error("Failed to set background", "error", err)
			return
		}
		log.Info("Background updated", "session_id", sessionID)
	}
	if sceneSprite != "" {
		if err := client.SetSprite(ctx, sessionID, sceneSprite); err != nil {
			log.Error("Failed to set sprite", "error", err)
			return
		}
		log.Info("Sprite updated", "session_id", sessionID)
	}
	if sceneTheme != "" {
		if err := client.SetTheme(ctx, sceneTheme); err != nil {
			log.Error("Failed to set theme", "error", err)
			return
		}
		log.Info("Theme updated")
	}
}

func printScene(ctx context.Context, client *transport.Client, sessionID string) {
	background, err := client.Background(ctx, sessionID)
	printSceneLine("background", background, err)

	sprite, err := client.Sprite(ctx, sessionID)
	printSceneLine("sprite", sprite, err)

	theme, err := client.Theme(ctx)
	printSceneLine("theme", theme, err)

	avatars, err := client.AvatarConfig(ctx, sessionID)
	if err != nil {
		printSceneLine("avatars", "", err)
		return
	}
	fmt.Printf("user:       %s\n", avatars.User.Name)
	fmt.Printf("bot:        %s\n", avatars.Bot.Name)
}

func printSceneLine(label string, value string, err error) {
	if err != nil {
		fmt.Printf("%-11s (unavailable: %v)\n", label+":", err)
		return
	}
	if value == "" {
		value = "(unset)"
	}
	fmt.Printf("%-11s %s\n", label+":", value)
}
