package channels

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uniboxhq/unibox/internal/models"
)

func TestSMSAdapterNormalize(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sms-1",
		"customer_name": "Dana Reyes",
		"phone_number": "+15550100",
		"unread": true,
		"starred": true,
		"timestamp": "2026-03-01T12:00:00Z",
		"messages": [
			{"id": "m1", "direction": "inbound", "content": "Hi there", "timestamp": "2026-03-01T11:59:00Z", "status": "delivered"}
		]
	}`)

	thread, err := NewSMSAdapter().Normalize(raw)
	require.NoError(t, err)

	require.Equal(t, "sms-1", thread.ID)
	require.Equal(t, models.ChannelSMS, thread.Channel)
	require.Equal(t, "Dana Reyes", thread.DisplayName)
	require.True(t, thread.IsUnread)
	require.True(t, thread.IsStarred)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), thread.LastActivityAt)
	require.Len(t, thread.Messages, 1)
	require.Equal(t, models.DirectionInbound, thread.Messages[0].Direction)
	require.Equal(t, models.StatusDelivered, thread.Messages[0].Status)
	require.Equal(t, "Hi there", thread.Preview)
}

func TestSMSAdapterFallsBackToPhoneNumber(t *testing.T) {
	raw := json.RawMessage(`{"id": "sms-2", "phone_number": "+15550123", "unread": false}`)

	thread, err := NewSMSAdapter().Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "+15550123", thread.DisplayName)
}

func TestSMSAdapterUnknownDisplayName(t *testing.T) {
	raw := json.RawMessage(`{"id": "sms-3"}`)

	thread, err := NewSMSAdapter().Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "Unknown", thread.DisplayName)
}

func TestSocialAdapterPlatforms(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		want     models.Channel
		wantErr  bool
	}{
		{name: "facebook", platform: "facebook", want: models.ChannelFacebook},
		{name: "instagram", platform: "instagram", want: models.ChannelInstagram},
		{name: "messenger alias", platform: "messenger", want: models.ChannelFacebook},
		{name: "unknown platform dropped", platform: "telegram", wantErr: true},
	}

	adapter := NewSocialAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]any{
				"id":       "soc-1",
				"platform": tt.platform,
			})
			require.NoError(t, err)

			thread, err := adapter.Normalize(raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, thread.Channel)
		})
	}
}

func TestSocialAdapterDirectionFromIsOutbound(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "soc-2",
		"platform": "instagram",
		"from_name": "gia.travels",
		"unread": false,
		"messages": [
			{"id": "m1", "is_outbound": true, "text": "Thanks for booking!", "created_at": "2026-03-02T09:00:00Z"},
			{"id": "m2", "is_outbound": false, "text": "See you then", "created_at": "2026-03-02T09:05:00Z"}
		]
	}`)

	thread, err := NewSocialAdapter().Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, models.DirectionOutbound, thread.Messages[0].Direction)
	require.Equal(t, models.DirectionInbound, thread.Messages[1].Direction)
	// Missing thread timestamp falls back to the newest message.
	require.Equal(t, time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC), thread.LastActivityAt)
}

func TestEmailAdapterInvertsIsRead(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "em-1",
		"from_name": "Aiko Tan",
		"from_address": "aiko@example.com",
		"subject": "Booking change",
		"is_read": false,
		"has_attachments": true,
		"last_message_at": "2026-03-03T08:00:00Z",
		"labels": [{"id": "l1", "name": "VIP", "color": "#f1c40f"}],
		"messages": [
			{"id": "m1", "html_body": "<p>Hello <b>team</b>,</p><p>New time?</p>", "text_body": "ignored", "sent_at": "2026-03-03T07:55:00Z"}
		]
	}`)

	thread, err := NewEmailAdapter().Normalize(raw)
	require.NoError(t, err)

	require.True(t, thread.IsUnread, "is_read=false must invert to unread")
	require.True(t, thread.HasAttachments)
	require.Equal(t, "Booking change", thread.Subject)
	require.Len(t, thread.Labels, 1)
	require.Equal(t, "Hello team,\nNew time?", thread.Messages[0].Body)
}

func TestEmailAdapterBodyPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		message map[string]any
		want    string
	}{
		{
			name:    "html wins over text and content",
			message: map[string]any{"id": "m1", "html_body": "<b>rich</b>", "text_body": "plain", "content": "raw"},
			want:    "rich",
		},
		{
			name:    "text wins over content",
			message: map[string]any{"id": "m1", "text_body": "plain", "content": "raw"},
			want:    "plain",
		},
		{
			name:    "content is the last resort",
			message: map[string]any{"id": "m1", "content": "raw"},
			want:    "raw",
		},
	}

	adapter := NewEmailAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]any{
				"id":       "em-2",
				"is_read":  true,
				"messages": []map[string]any{tt.message},
			})
			require.NoError(t, err)

			thread, err := adapter.Normalize(raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, thread.Messages[0].Body)
		})
	}
}

func TestNormalizeBatchDropsMalformedRecords(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id": "sms-1", "unread": true}`),
		json.RawMessage(`{"unread": true}`),
		json.RawMessage(`not json`),
		json.RawMessage(`{"id": "sms-2"}`),
	}

	result := NormalizeBatch(NewSMSAdapter(), raws)
	require.Len(t, result.Threads, 2)
	require.Equal(t, 2, result.Dropped)
	require.Equal(t, "sms-1", result.Threads[0].ID)
	require.Equal(t, "sms-2", result.Threads[1].ID)
}

func TestNormalizeBatchEmptyInput(t *testing.T) {
	result := NormalizeBatch(NewEmailAdapter(), nil)
	require.Empty(t, result.Threads)
	require.Zero(t, result.Dropped)
}

func TestParseTimeFormats(t *testing.T) {
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), parseTime("2026-03-01T12:00:00Z"))
	require.Equal(t, time.Unix(1767225600, 0).UTC(), parseTime("1767225600"))
	require.True(t, parseTime("").IsZero())
	require.True(t, parseTime("yesterday").IsZero())
}
