package core

// EventKind is a notification the core pushes to live channels.
type EventKind int

const (
	// EventOnlineUsers carries the full set of users holding a live channel.
	EventOnlineUsers EventKind = iota
	// EventNewMessage carries a freshly persisted message to its receiver.
	EventNewMessage
)

func (k EventKind) String() string {
	switch k {
	case EventOnlineUsers:
		return "online_users"
	case EventNewMessage:
		return "new_message"
	default:
		return "unknown"
	}
}

// Event is sent to channels to describe what happened in the system.
// Events are shared between receivers and must be treated as read-only.
type Event struct {
	Kind        EventKind
	OnlineUsers []string // EventOnlineUsers
	Message     Message  // EventNewMessage
}
