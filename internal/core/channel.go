package core

// Channel is a live push connection as seen by the core layer.
// The transport owns the socket and drains Events.
type Channel struct {
	ID     string
	UserID string
	Events chan *Event
}

// NewChannel constructs a channel with a buffered outbox.
func NewChannel(id, userID string, outbox int) *Channel {
	if outbox <= 0 {
		outbox = 8
	}
	return &Channel{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, outbox),
	}
}

// Send enqueues ev without blocking. It returns false when the outbox is full
// and the event was dropped.
func (c *Channel) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
