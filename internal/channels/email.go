package channels

import (
	"encoding/json"
	"fmt"

	"github.com/uniboxhq/unibox/internal/models"
)

// emailThreadRecord is the raw email provider thread shape. This variant
// carries `is_read` (inverted into canonical unread) and
// `last_message_at` as its authoritative activity timestamp.
type emailThreadRecord struct {
	ID             string               `json:"id"`
	CustomerName   string               `json:"customer_name"`
	FromName       string               `json:"from_name"`
	FromAddress    string               `json:"from_address"`
	Subject        string               `json:"subject"`
	IsRead         bool                 `json:"is_read"`
	Starred        bool                 `json:"starred"`
	HasAttachments bool                 `json:"has_attachments"`
	LastMessageAt  string               `json:"last_message_at"`
	Labels         []emailLabelRecord   `json:"labels"`
	Messages       []emailMessageRecord `json:"messages"`
}

type emailLabelRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type emailMessageRecord struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	HTMLBody  string `json:"html_body"`
	TextBody  string `json:"text_body"`
	Content   string `json:"content"`
	SentAt    string `json:"sent_at"`
}

// EmailAdapter normalizes email provider threads.
type EmailAdapter struct{}

func NewEmailAdapter() EmailAdapter {
	return EmailAdapter{}
}

func (EmailAdapter) Kind() Kind {
	return KindEmail
}

func (EmailAdapter) Normalize(raw json.RawMessage) (models.Thread, error) {
	if len(raw) == 0 {
		return models.Thread{}, ErrEmptyRecord
	}

	var record emailThreadRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.Thread{}, fmt.Errorf("decode email thread: %w", err)
	}

	messages := make([]models.Message, 0, len(record.Messages))
	for _, m := range record.Messages {
		if m.ID == "" {
			continue
		}
		messages = append(messages, models.Message{
			ID:        m.ID,
			SentAt:    parseTime(m.SentAt),
			Direction: resolveDirection(m.Direction, nil),
			Body:      resolveBody(m.HTMLBody, m.TextBody, m.Content),
		})
	}

	labels := make([]models.Label, 0, len(record.Labels))
	for _, l := range record.Labels {
		labels = append(labels, models.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}

	thread := models.Thread{
		ID:             record.ID,
		Channel:        models.ChannelEmail,
		DisplayName:    resolveDisplayName(record.CustomerName, record.FromName, record.FromAddress),
		Subject:        record.Subject,
		Preview:        resolvePreview("", messages),
		IsUnread:       !record.IsRead,
		IsStarred:      record.Starred,
		HasAttachments: record.HasAttachments,
		LastActivityAt: fallbackActivity(parseTime(record.LastMessageAt), messages),
		Labels:         labels,
		Messages:       messages,
	}
	if err := thread.Validate(); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}
