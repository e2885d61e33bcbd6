package models

import "errors"

// Validation errors.
var (
	ErrMissingThreadID = errors.New("thread id is required")
	ErrInvalidChannel  = errors.New("invalid channel")
	ErrMissingMessage  = errors.New("message id is required")
)

// Validate checks the fields every canonical thread must carry. Adapters
// drop records that fail validation instead of aborting the batch.
func (t *Thread) Validate() error {
	if t.ID == "" {
		return ErrMissingThreadID
	}
	if !t.Channel.IsValid() {
		return ErrInvalidChannel
	}
	return nil
}

// Validate checks the fields every canonical message must carry.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMissingMessage
	}
	return nil
}
