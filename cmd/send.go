package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"vnchat/pkg/config"
	"vnchat/pkg/logger"
	"vnchat/pkg/message"
	"vnchat/pkg/transport"

	"github.com/spf13/cobra"
)

var (
	sendSessionID string
	sendImagePath string
)

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Send one message and exit",
	Long:  "Posts a single text or image message to the backend without opening the chat view.",
	Run: func(cmd *cobra.Command, args []string) {
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
		log := slog.Default().With("component", "cmd.send")

		env, err := buildEnvelope(cfg.Client.UserID, strings.TrimSpace(strings.Join(args, " ")), sendImagePath)
		if err != nil {
			log.Error("Nothing to send", "error", err)
			return
		}

		sessionID := sendSessionID
		if sessionID == "" {
			sessionID = cfg.Client.SessionID
		}

		addr := config.ResolveAddress(cfg, log)
		client := transport.NewClient(addr, time.Duration(cfg.Client.RequestTimeoutSeconds)*time.Second)

		if err := client.Send(context.Background(), sessionID, env); err != nil {
			log.Error("Send failed", "session_id", sessionID, "error", err)
			return
		}
		log.Info("Message sent", "session_id", sessionID, "type", env.Type)
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendSessionID, "session", "s", "", "target session id (defaults to the configured session)")
	sendCmd.Flags().StringVarP(&sendImagePath, "image", "i", "", "path of an image file to send instead of text")
	rootCmd.AddCommand(sendCmd)
}

func buildEnvelope(userID string, text string, imagePath string) (message.Envelope, error) {
	if imagePath != "" {
		raw, err := os.ReadFile(imagePath)
		if err != nil {
			return message.Envelope{}, fmt.Errorf("read image %s: %w", imagePath, err)
		}
		return message.Envelope{
			FromUser: userID,
			Type:     "image",
			ImageB64: base64.StdEncoding.EncodeToString(raw),
		}, nil
	}

	if text == "" {
		return message.Envelope{}, fmt.Errorf("provide message text or --image")
	}

	return message.Envelope{FromUser: userID, Type: "text", Text: text}, nil
}
