// Package channels translates raw provider records into the canonical
// thread model. Each adapter owns the field-resolution rules for one
// channel shape; a malformed record is dropped with a logged diagnostic,
// never allowed to abort the whole batch.
package channels

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/uniboxhq/unibox/internal/logging"
	"github.com/uniboxhq/unibox/internal/models"
)

// Kind identifies a raw record shape. Social covers both Facebook and
// Instagram, which share one provider payload distinguished by platform.
type Kind string

const (
	KindSMS    Kind = "sms"
	KindSocial Kind = "social"
	KindEmail  Kind = "email"
)

// Adapter errors.
var (
	ErrEmptyRecord = errors.New("empty record")
	ErrDropped     = errors.New("record dropped")
)

// Adapter normalizes one raw provider record into a canonical thread.
type Adapter interface {
	Kind() Kind
	Normalize(raw json.RawMessage) (models.Thread, error)
}

// BatchResult reports the outcome of normalizing one fetched batch.
type BatchResult struct {
	Threads []models.Thread
	Dropped int
}

// NormalizeBatch runs the adapter over every record, keeping the threads
// that normalize cleanly and dropping the rest. Per-channel fetches are
// independent, so one malformed record must never blank the inbox.
func NormalizeBatch(adapter Adapter, raws []json.RawMessage) BatchResult {
	logger := logging.WithChannel(logging.Component("channels"), string(adapter.Kind()))
	return normalizeBatch(adapter, raws, logger)
}

func normalizeBatch(adapter Adapter, raws []json.RawMessage, logger zerolog.Logger) BatchResult {
	result := BatchResult{}
	if len(raws) == 0 {
		return result
	}

	result.Threads = make([]models.Thread, 0, len(raws))
	for i, raw := range raws {
		thread, err := adapter.Normalize(raw)
		if err != nil {
			result.Dropped++
			logger.Warn().Err(err).Int("index", i).Msg("dropped malformed record")
			continue
		}
		result.Threads = append(result.Threads, thread)
	}
	return result
}

// resolveDisplayName applies the counterparty name precedence: explicit
// customer name > channel "from" name > raw address > "Unknown".
func resolveDisplayName(customerName, fromName, address string) string {
	if name := strings.TrimSpace(customerName); name != "" {
		return name
	}
	if name := strings.TrimSpace(fromName); name != "" {
		return name
	}
	if addr := strings.TrimSpace(address); addr != "" {
		return addr
	}
	return "Unknown"
}

// resolveBody applies the body precedence: HTML stripped of markup >
// plain text > raw content.
func resolveBody(htmlBody, textBody, content string) string {
	if strings.TrimSpace(htmlBody) != "" {
		return StripHTML(htmlBody)
	}
	if strings.TrimSpace(textBody) != "" {
		return textBody
	}
	return content
}

// previewLimit bounds the thread preview excerpt.
const previewLimit = 120

func resolvePreview(explicit string, messages []models.Message) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return truncate(trimmed, previewLimit)
	}
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]
	return truncate(strings.TrimSpace(last.Body), previewLimit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// parseTime tolerates the timestamp formats the providers actually emit:
// RFC 3339 (with or without sub-second precision) and unix seconds.
// Anything else resolves to the zero time rather than an error.
func parseTime(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return parsed.UTC()
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC()
	}
	if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

// resolveDirection maps either an explicit direction field or an
// is_outbound boolean onto the canonical direction.
func resolveDirection(direction string, isOutbound *bool) models.Direction {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "outbound", "out", "sent":
		return models.DirectionOutbound
	case "inbound", "in", "received":
		return models.DirectionInbound
	}
	if isOutbound != nil && *isOutbound {
		return models.DirectionOutbound
	}
	return models.DirectionInbound
}

func resolveStatus(status string) models.DeliveryStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "sent":
		return models.StatusSent
	case "delivered":
		return models.StatusDelivered
	case "read":
		return models.StatusRead
	}
	return ""
}

// fallbackActivity fills a missing thread timestamp from the newest
// message so the thread still sorts sensibly.
func fallbackActivity(activity time.Time, messages []models.Message) time.Time {
	if !activity.IsZero() {
		return activity
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].SentAt.IsZero() {
			return messages[i].SentAt
		}
	}
	return time.Time{}
}
