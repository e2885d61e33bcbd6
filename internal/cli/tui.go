package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/uniboxhq/unibox/internal/db"
	"github.com/uniboxhq/unibox/internal/drafts"
	"github.com/uniboxhq/unibox/internal/events"
	"github.com/uniboxhq/unibox/internal/inbox"
	"github.com/uniboxhq/unibox/internal/livesync"
	"github.com/uniboxhq/unibox/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPI(); err != nil {
			return err
		}
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

		client := newTransportClient()
		coordinator := inbox.NewCoordinator(client, inbox.WithPublisher(publisher))

		draftRepo := db.NewDraftRepositoryWithCap(database, cfg.Drafts.MaxEntries)
		draftManager := drafts.NewManager(draftRepo, drafts.WithDebounce(cfg.Drafts.Debounce))
		defer draftManager.Close()

		var stats tui.StatsProvider
		if cfg.LiveSync.URI != "" {
			sync := livesync.NewClient(
				cfg.LiveSync.URI,
				livesync.DialWebsocket,
				func(context.Context) (string, error) { return cfg.APIToken(), nil },
				livesync.WithPublisher(publisher),
				livesync.WithEventLog(db.NewEscalationRepository(database)),
				livesync.WithHeartbeatInterval(cfg.LiveSync.HeartbeatInterval),
				livesync.WithRetryInterval(cfg.LiveSync.RetryInterval),
				livesync.WithMaxAttempts(cfg.LiveSync.MaxAttempts),
			)
			if err := sync.Connect(cmd.Context()); err != nil {
				return err
			}
			defer sync.Disconnect()
			stats = sync.Stats
		}

		model := tui.NewModel(tui.Config{
			Coordinator: coordinator,
			Drafts:      draftManager,
			Stats:       stats,
			Loader: func(ctx context.Context) (inbox.ByChannel, error) {
				merged, _, err := fetchByChannel(ctx, client)
				return merged, err
			},
			Sender:          client.SendMessage,
			RefreshInterval: cfg.TUI.RefreshInterval,
			Theme:           cfg.TUI.Theme,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		_, err = program.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
