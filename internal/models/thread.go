// Package models defines the canonical data model for the unified inbox.
package models

import "time"

// Channel identifies the transport a thread arrived on.
type Channel string

const (
	ChannelSMS       Channel = "sms"
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
	ChannelEmail     Channel = "email"

	// ChannelAll is a filter-only pseudo channel, never stored on a thread.
	ChannelAll Channel = "all"
)

// IsValid reports whether c is a concrete channel a thread can belong to.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelFacebook, ChannelInstagram, ChannelEmail:
		return true
	}
	return false
}

// IsSocial reports whether c is one of the social platforms.
func (c Channel) IsSocial() bool {
	return c == ChannelFacebook || c == ChannelInstagram
}

// Label is a user-visible tag attached to a thread.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Thread is the canonical conversation shape all channels normalize into.
// Field resolution (unread, display name, timestamps, body) happens once in
// the channel adapters; nothing downstream re-interrogates raw provider
// fields.
type Thread struct {
	// ID is unique within the thread's channel namespace.
	ID string `json:"id"`

	// Channel is the transport this thread arrived on.
	Channel Channel `json:"channel"`

	// DisplayName is the resolved counterparty name. Resolution precedence:
	// explicit customer name > channel "from" name > raw address > "Unknown".
	DisplayName string `json:"display_name"`

	// Subject is the thread subject where the channel has one (email).
	Subject string `json:"subject,omitempty"`

	// Preview is a short excerpt of the latest message.
	Preview string `json:"preview,omitempty"`

	// IsUnread is resolved from the channel's authoritative flag:
	// `unread` for SMS/social, inverted `is_read` for email.
	IsUnread bool `json:"is_unread"`

	IsStarred      bool `json:"is_starred"`
	HasAttachments bool `json:"has_attachments"`

	// IsArchived hides the thread from the default inbox listing.
	IsArchived bool `json:"is_archived"`

	// LastActivityAt is the sole sort key for merged ordering.
	LastActivityAt time.Time `json:"last_activity_at"`

	Labels []Label `json:"labels,omitempty"`

	// Messages are chronological, earliest first.
	Messages []Message `json:"messages,omitempty"`
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	cloned := t
	if len(t.Labels) > 0 {
		cloned.Labels = append([]Label(nil), t.Labels...)
	}
	if len(t.Messages) > 0 {
		cloned.Messages = make([]Message, len(t.Messages))
		copy(cloned.Messages, t.Messages)
	}
	return cloned
}

// CloneThreads deep-copies a slice of threads.
func CloneThreads(threads []Thread) []Thread {
	if len(threads) == 0 {
		return nil
	}
	cloned := make([]Thread, len(threads))
	for i := range threads {
		cloned[i] = threads[i].Clone()
	}
	return cloned
}
