package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/infra/push"
	redisclient "github.com/yakey01/dokterku-sub007/internal/infra/redis"
)

var (
	notifyEvent string
	notifyData  string
)

var notifyCmd = &cobra.Command{
	Use:   "notify [variant] [user_id]",
	Short: "Publish a live update event through Redis",
	Args:  cobra.ExactArgs(2),
	Run:   runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyEvent, "event", push.EventJaspelUpdated, "event name")
	notifyCmd.Flags().StringVar(&notifyData, "data", "", "event data as JSON")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) {
	variant, err := domain.ParseVariant(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var data any
	if notifyData != "" {
		if !json.Valid([]byte(notifyData)) {
			fmt.Println("--data must be valid JSON")
			os.Exit(1)
		}
		data = json.RawMessage(notifyData)
	}

	cfg := loadConfig(cmd)
	if !cfg.Redis.Enabled() {
		slog.Error("Redis is not configured")
		os.Exit(1)
	}
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channel := push.Channel(string(variant), args[1])
	if err := client.Publish(ctx, channel, notifyEvent, data); err != nil {
		slog.Error("Failed to publish event", "error", err)
		os.Exit(1)
	}
	slog.Info("Event published", "channel", channel, "event", notifyEvent)
}
