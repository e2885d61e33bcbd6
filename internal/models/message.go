package models

import "time"

// Direction indicates which side of the conversation sent a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus is an optional receipt indicator for outbound messages.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// Message is the canonical message shape. Body resolution precedence is
// HTML body stripped of markup > plain-text body > raw content field, and
// is applied once by the channel adapters.
type Message struct {
	ID        string    `json:"id"`
	SentAt    time.Time `json:"sent_at"`
	Direction Direction `json:"direction"`
	Body      string    `json:"body"`

	// Status is empty when the channel has no receipt indicators.
	Status DeliveryStatus `json:"status,omitempty"`
}
