package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vnchat/pkg/bus"
	"vnchat/pkg/config"
	"vnchat/pkg/echo"
	"vnchat/pkg/logger"
	"vnchat/pkg/session"
	"vnchat/pkg/syncengine"
	"vnchat/pkg/transport"
	chatui "vnchat/pkg/ui/chat"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat view",
	Long:  "Connects to the backend, synchronizes the configured session, and opens the terminal chat view.",
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
		log := slog.Default().With("component", "cmd.chat")

		addr := config.ResolveAddress(cfg, log)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messageBus := bus.NewMessageBus()
		defer messageBus.Close()

		store := session.NewStore()
		filter := echo.NewFilter(time.Duration(cfg.Client.EchoTTLSeconds) * time.Second)
		adapter := transport.NewAdapter(addr, messageBus, cfg.Client, log)
		engine := syncengine.New(store, filter, messageBus, adapter, cfg.Client.UserID, log)

		if cfg.Client.SessionID != session.DefaultSessionID {
			if err := engine.CreateSession(cfg.Client.SessionID, cfg.Client.SessionID); err != nil && !errors.Is(err, session.ErrSessionExists) {
				log.Error("Failed to create configured session", "session_id", cfg.Client.SessionID, "error", err)
				return
			}
			if err := engine.SwitchSession(runCtx, cfg.Client.SessionID); err != nil {
				log.Error("Failed to activate configured session", "session_id", cfg.Client.SessionID, "error", err)
				return
			}
		}

		scene := fetchScene(runCtx, adapter.Client(), cfg.Client, log)

		events, unsubscribe := messageBus.SubscribeEvents(runCtx, 64)
		defer unsubscribe()

		uiCtx, cancelUI := context.WithCancel(runCtx)
		defer cancelUI()

		go func() {
			if err := engine.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Sync engine stopped", "error", err)
				cancelUI()
			}
		}()
		go func() {
			if err := adapter.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Transport adapter stopped", "error", err)
				cancelUI()
			}
		}()

		log.Info("Chat started", "backend", addr.BaseURL(), "session_id", cfg.Client.SessionID, "user_id", cfg.Client.UserID)
		if err := chatui.Run(uiCtx, engine, events, scene); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Chat view failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// fetchScene pulls the cosmetic decorations once at startup. Any endpoint
// failure falls back to defaults; the conversation works without scenery.
func fetchScene(ctx context.Context, client *transport.Client, clientCfg config.ClientConfig, log *slog.Logger) chatui.SceneInfo {
	scene := chatui.SceneInfo{UserName: clientCfg.Nickname}

	if background, err := client.Background(ctx, clientCfg.SessionID); err != nil {
		log.Warn("Background unavailable", "error", err)
	} else {
		scene.Background = background
	}

	if sprite, err := client.Sprite(ctx, clientCfg.SessionID); err != nil {
		log.Warn("Sprite unavailable", "error", err)
	} else {
		scene.Sprite = sprite
	}

	if avatars, err := client.AvatarConfig(ctx, clientCfg.SessionID); err != nil {
		log.Warn("Avatar config unavailable", "error", err)
	} else {
		if scene.UserName == "" {
			scene.UserName = avatars.User.Name
		}
		scene.BotName = avatars.Bot.Name
	}

	if theme, err := client.Theme(ctx); err != nil {
		log.Warn("Theme unavailable", "error", err)
	} else {
		scene.Theme = theme
	}

	return scene
}
