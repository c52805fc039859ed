package core

import "sort"

// Registry maps user IDs to their single live channel.
// It is not safe for concurrent use; the Hub goroutine owns it.
type Registry struct {
	records map[string]*Channel
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Channel)}
}

// Register records ch as the live channel of userID, overwriting any previous
// record. The replaced channel, if any, is returned; it is not closed.
func (r *Registry) Register(userID string, ch *Channel) *Channel {
	prev := r.records[userID]
	r.records[userID] = ch
	return prev
}

// Unregister removes the record whose channel has channelID.
// Returns the user it belonged to, or false if no record matched.
func (r *Registry) Unregister(channelID string) (string, bool) {
	for userID, ch := range r.records {
		if ch.ID == channelID {
			delete(r.records, userID)
			return userID, true
		}
	}
	return "", false
}

// Lookup returns the live channel of userID.
func (r *Registry) Lookup(userID string) (*Channel, bool) {
	ch, ok := r.records[userID]
	return ch, ok
}

// Snapshot returns the registered user IDs in sorted order.
func (r *Registry) Snapshot() []string {
	users := make([]string, 0, len(r.records))
	for userID := range r.records {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Channels returns every registered channel.
func (r *Registry) Channels() []*Channel {
	channels := make([]*Channel, 0, len(r.records))
	for _, ch := range r.records {
		channels = append(channels, ch)
	}
	return channels
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	return len(r.records)
}
