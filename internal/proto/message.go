// Package proto holds the wire types shared by the server and the client:
// the push channel envelope and the REST request/response bodies.
package proto

import (
	"encoding/json"
	"time"
)

const (
	OutboundTypeEvent = "event"

	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Outbound is the envelope for events sent to the client over the push channel.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Envelope is Outbound as seen by a receiver that decodes Data per event.
type Envelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is a direct message on the wire.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// User is the public view of an account.
type User struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	Bio        string `json:"bio,omitempty"`
}

// StatusResponse is the body of replies that carry no data, including errors.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UsersResponse lists peers and the unseen count per sender ID.
type UsersResponse struct {
	Success        bool           `json:"success"`
	Users          []User         `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}

// MessagesResponse is a conversation in insertion order.
type MessagesResponse struct {
	Success  bool      `json:"success"`
	Messages []Message `json:"messages"`
}

// SendMessageRequest is the body of a send. Image is a URL or a base64 image data URL.
type SendMessageRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// SendMessageResponse returns the persisted message.
type SendMessageResponse struct {
	Success    bool    `json:"success"`
	NewMessage Message `json:"newMessage"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName,omitempty" binding:"max=64"`
	Bio      string `json:"bio,omitempty" binding:"max=280"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a bearer token and the authenticated user.
type AuthResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token,omitempty"`
	UserData *User  `json:"userData,omitempty"`
	Message  string `json:"message,omitempty"`
}
