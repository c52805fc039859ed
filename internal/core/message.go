package core

import (
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// Message is the domain model for a direct message.
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

// Payload is the user-supplied content of a message. Text and Image may both be set.
type Payload struct {
	Text  string
	Image string
}

// Empty reports whether neither text nor image is present.
func (p Payload) Empty() bool {
	return p.Text == "" && p.Image == ""
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
