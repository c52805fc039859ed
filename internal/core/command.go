package core

// PushResult describes what happened to a targeted push.
type PushResult int

const (
	// PushDelivered means the event was queued on the receiver's channel.
	PushDelivered PushResult = iota
	// PushOffline means the receiver has no live channel.
	PushOffline
	// PushDropped means the receiver's outbox was full.
	PushDropped
	// PushAborted means the hub stopped or the caller gave up before the push ran.
	PushAborted
)

func (r PushResult) String() string {
	switch r {
	case PushDelivered:
		return "delivered"
	case PushOffline:
		return "offline"
	case PushDropped:
		return "dropped"
	case PushAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// pushCommand asks the hub to deliver an event to one user.
type pushCommand struct {
	userID string
	event  *Event
	result chan PushResult
}
