package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) when a user or message does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	FullName     string
	ProfilePic   string
	Bio          string
	CreatedAt    time.Time
}

// Message represents a persisted direct message.
// Everything except Seen is immutable once created.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Seen       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user and fills in ID and CreatedAt.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsersExcept lists every user other than the given one, ordered by username.
	ListUsersExcept(ctx context.Context, id string) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and fills in ID, timestamps and Seen=false.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// MarkMessageSeen sets seen=true. Reports whether the flag changed;
	// already-seen and unknown messages report false without error.
	MarkMessageSeen(ctx context.Context, id string) (bool, error)

	// MarkConversationSeen marks every unseen message from sender to receiver as seen.
	MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error)

	// ListMessagesBetween returns the messages exchanged by two users in insertion order.
	ListMessagesBetween(ctx context.Context, userA, userB string) ([]*Message, error)

	// CountUnseenBySender maps sender ID to the number of unseen messages addressed to receiver.
	CountUnseenBySender(ctx context.Context, receiverID string) (map[string]int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
