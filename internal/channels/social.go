package channels

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uniboxhq/unibox/internal/models"
)

// socialThreadRecord is the raw social provider thread shape, shared by
// Facebook and Instagram and distinguished by the platform field. The
// `unread` flag and `timestamp` field are authoritative for this variant.
type socialThreadRecord struct {
	ID           string                `json:"id"`
	Platform     string                `json:"platform"`
	CustomerName string                `json:"customer_name"`
	FromName     string                `json:"from_name"`
	Username     string                `json:"username"`
	Unread       bool                  `json:"unread"`
	Starred      bool                  `json:"starred"`
	Timestamp    string                `json:"timestamp"`
	Preview      string                `json:"preview"`
	Messages     []socialMessageRecord `json:"messages"`
}

type socialMessageRecord struct {
	ID         string `json:"id"`
	IsOutbound *bool  `json:"is_outbound"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}

// SocialAdapter normalizes Facebook and Instagram provider threads.
type SocialAdapter struct{}

func NewSocialAdapter() SocialAdapter {
	return SocialAdapter{}
}

func (SocialAdapter) Kind() Kind {
	return KindSocial
}

func (SocialAdapter) Normalize(raw json.RawMessage) (models.Thread, error) {
	if len(raw) == 0 {
		return models.Thread{}, ErrEmptyRecord
	}

	var record socialThreadRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.Thread{}, fmt.Errorf("decode social thread: %w", err)
	}

	channel, err := socialChannel(record.Platform)
	if err != nil {
		return models.Thread{}, err
	}

	messages := make([]models.Message, 0, len(record.Messages))
	for _, m := range record.Messages {
		if m.ID == "" {
			continue
		}
		messages = append(messages, models.Message{
			ID:        m.ID,
			SentAt:    parseTime(m.CreatedAt),
			Direction: resolveDirection("", m.IsOutbound),
			Body:      resolveBody("", m.Text, ""),
		})
	}

	thread := models.Thread{
		ID:             record.ID,
		Channel:        channel,
		DisplayName:    resolveDisplayName(record.CustomerName, record.FromName, record.Username),
		Preview:        resolvePreview(record.Preview, messages),
		IsUnread:       record.Unread,
		IsStarred:      record.Starred,
		LastActivityAt: fallbackActivity(parseTime(record.Timestamp), messages),
		Messages:       messages,
	}
	if err := thread.Validate(); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

func socialChannel(platform string) (models.Channel, error) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "facebook", "fb", "messenger":
		return models.ChannelFacebook, nil
	case "instagram", "ig":
		return models.ChannelInstagram, nil
	default:
		return "", fmt.Errorf("unknown social platform %q: %w", platform, models.ErrInvalidChannel)
	}
}
