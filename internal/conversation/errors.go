package conversation

import "errors"

var (
	// ErrInvalidRole is returned when a message role is outside {user, assistant}.
	ErrInvalidRole = errors.New("role must be either user or assistant")

	// ErrEmptyConversation is returned when saving a ledger with no messages.
	ErrEmptyConversation = errors.New("no messages to save")

	// ErrNotFound is returned when loading from a location that does not exist.
	ErrNotFound = errors.New("conversation snapshot not found")

	// ErrCorruptData is returned when a persisted snapshot cannot be decoded.
	ErrCorruptData = errors.New("conversation snapshot is malformed")
)
