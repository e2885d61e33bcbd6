package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/uniboxhq/unibox/internal/channels"
	"github.com/uniboxhq/unibox/internal/inbox"
	"github.com/uniboxhq/unibox/internal/models"
	"github.com/uniboxhq/unibox/internal/transport"
)

var (
	syncJSON    bool
	syncChannel string
	syncUnread  bool
	syncQuery   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch all channels and print the merged thread list",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAPI(); err != nil {
			return err
		}
		ctx := cmd.Context()

		merged, dropped, err := fetchAndMerge(ctx)
		if err != nil {
			return err
		}

		criteria := inbox.Criteria{
			Channel:    models.ChannelAll,
			Query:      syncQuery,
			UnreadOnly: syncUnread,
		}
		if syncChannel != "" {
			channel := models.Channel(syncChannel)
			if !channel.IsValid() {
				return fmt.Errorf("unknown channel %q", syncChannel)
			}
			criteria.Channel = channel
		}
		filtered := inbox.Filter(merged, criteria)

		if syncJSON {
			return json.NewEncoder(os.Stdout).Encode(filtered)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tFROM\tPREVIEW\tUNREAD\tLAST ACTIVITY")
		for _, thread := range filtered {
			unread := ""
			if thread.IsUnread {
				unread = "●"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				thread.Channel,
				thread.DisplayName,
				truncatePreview(thread.Preview, 40),
				unread,
				thread.LastActivityAt.Format("2006-01-02 15:04"),
			)
		}
		w.Flush()
		if dropped > 0 {
			fmt.Fprintf(os.Stderr, "%d malformed records dropped\n", dropped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print threads as JSON")
	syncCmd.Flags().StringVar(&syncChannel, "channel", "", "filter by channel (sms, facebook, instagram, email)")
	syncCmd.Flags().BoolVar(&syncUnread, "unread", false, "only show unread threads")
	syncCmd.Flags().StringVar(&syncQuery, "query", "", "substring search over sender and subject")
}

// fetchAndMerge pulls every channel, normalizes the raw records and
// merges them into one ordered collection.
func fetchAndMerge(ctx context.Context) ([]models.Thread, int, error) {
	byChannel, dropped, err := fetchByChannel(ctx, newTransportClient())
	if err != nil {
		return nil, 0, err
	}
	return inbox.Merge(byChannel), dropped, nil
}

// fetchByChannel fetches and normalizes each channel separately.
func fetchByChannel(ctx context.Context, client *transport.Client) (inbox.ByChannel, int, error) {
	smsRaw, err := client.FetchSMS(ctx)
	if err != nil {
		return inbox.ByChannel{}, 0, fmt.Errorf("fetch sms: %w", err)
	}
	socialRaw, err := client.FetchSocial(ctx)
	if err != nil {
		return inbox.ByChannel{}, 0, fmt.Errorf("fetch social: %w", err)
	}
	emailRaw, err := client.FetchEmail(ctx)
	if err != nil {
		return inbox.ByChannel{}, 0, fmt.Errorf("fetch email: %w", err)
	}

	sms := channels.NormalizeBatch(channels.NewSMSAdapter(), smsRaw)
	social := channels.NormalizeBatch(channels.NewSocialAdapter(), socialRaw)
	email := channels.NormalizeBatch(channels.NewEmailAdapter(), emailRaw)

	byChannel := inbox.ByChannel{
		SMS:    sms.Threads,
		Social: social.Threads,
		Email:  email.Threads,
	}
	return byChannel, sms.Dropped + social.Dropped + email.Dropped, nil
}

func newTransportClient() *transport.Client {
	return transport.NewClient(transport.ClientOptions{
		BaseURL:    cfg.API.BaseURL,
		UserAgent:  cfg.API.UserAgent,
		MaxRetries: cfg.API.MaxRetries,
		TokenProvider: func(context.Context) (string, error) {
			return cfg.APIToken(), nil
		},
	})
}

func truncatePreview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
