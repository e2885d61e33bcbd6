package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniboxhq/unibox/internal/db"
	"github.com/uniboxhq/unibox/internal/events"
	"github.com/uniboxhq/unibox/internal/livesync"
	"github.com/uniboxhq/unibox/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch [escalation-id...]",
	Short: "Stream escalation events and print the live stats aggregate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.LiveSync.URI == "" {
			return fmt.Errorf("livesync.uri is not configured (set UNIBOX_LIVESYNC_URI or livesync.uri)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer database.Close()

		publisher := events.NewInMemoryPublisher()
		defer publisher.Close()

		client := livesync.NewClient(
			cfg.LiveSync.URI,
			livesync.DialWebsocket,
			func(context.Context) (string, error) { return cfg.APIToken(), nil },
			livesync.WithPublisher(publisher),
			livesync.WithEventLog(db.NewEscalationRepository(database)),
			livesync.WithHeartbeatInterval(cfg.LiveSync.HeartbeatInterval),
			livesync.WithRetryInterval(cfg.LiveSync.RetryInterval),
			livesync.WithMaxAttempts(cfg.LiveSync.MaxAttempts),
		)

		err = publisher.Subscribe("watch", events.Filter{}, func(event *models.Event) {
			fmt.Printf("%s  %-28s  %s\n",
				event.Timestamp.Format("15:04:05"),
				event.Type,
				string(event.Payload),
			)
			if event.Type == models.EventTypeConnectionTerminal {
				stop()
			}
		})
		if err != nil {
			return err
		}

		if err := client.Connect(ctx); err != nil {
			return err
		}
		for _, id := range args {
			if err := client.Subscribe(ctx, id); err != nil {
				return fmt.Errorf("subscribe %s: %w", id, err)
			}
		}

		<-ctx.Done()
		client.Disconnect()
		// Err survives Disconnect, so an exhausted retry budget still
		// reaches the exit code instead of being swallowed.
		return client.Err()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
