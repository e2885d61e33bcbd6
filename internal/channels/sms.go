package channels

import (
	"encoding/json"
	"fmt"

	"github.com/uniboxhq/unibox/internal/models"
)

// smsThreadRecord is the raw SMS provider thread shape. The `unread` flag
// and `timestamp` field are authoritative for this variant.
type smsThreadRecord struct {
	ID           string             `json:"id"`
	CustomerName string             `json:"customer_name"`
	PhoneNumber  string             `json:"phone_number"`
	Unread       bool               `json:"unread"`
	Starred      bool               `json:"starred"`
	Timestamp    string             `json:"timestamp"`
	Preview      string             `json:"preview"`
	Messages     []smsMessageRecord `json:"messages"`
}

type smsMessageRecord struct {
	ID        string `json:"id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// SMSAdapter normalizes SMS provider threads.
type SMSAdapter struct{}

func NewSMSAdapter() SMSAdapter {
	return SMSAdapter{}
}

func (SMSAdapter) Kind() Kind {
	return KindSMS
}

func (SMSAdapter) Normalize(raw json.RawMessage) (models.Thread, error) {
	if len(raw) == 0 {
		return models.Thread{}, ErrEmptyRecord
	}

	var record smsThreadRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.Thread{}, fmt.Errorf("decode sms thread: %w", err)
	}

	messages := make([]models.Message, 0, len(record.Messages))
	for _, m := range record.Messages {
		if m.ID == "" {
			continue
		}
		messages = append(messages, models.Message{
			ID:        m.ID,
			SentAt:    parseTime(m.Timestamp),
			Direction: resolveDirection(m.Direction, nil),
			Body:      resolveBody("", "", m.Content),
			Status:    resolveStatus(m.Status),
		})
	}

	thread := models.Thread{
		ID:             record.ID,
		Channel:        models.ChannelSMS,
		DisplayName:    resolveDisplayName(record.CustomerName, "", record.PhoneNumber),
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
