// Package channel maintains the pub/sub membership index: channel name to
// the set of connection IDs currently subscribed.
package channel

// Registry is the membership index. It is not safe for concurrent use: the
// server event loop is its only owner.
type Registry struct {
	channels map[string]map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{channels: make(map[string]map[string]struct{})}
}

// Join subscribes connID to name, creating the channel lazily. Joining
// twice has no additional effect.
func (r *Registry) Join(connID, name string) {
	members, ok := r.channels[name]
	if !ok {
		members = make(map[string]struct{})
		r.channels[name] = members
	}
	members[connID] = struct{}{}
}

// Leave unsubscribes connID from name. Leaving a channel the connection
// never joined is a no-op. A channel whose last member leaves is pruned.
func (r *Registry) Leave(connID, name string) {
	members, ok := r.channels[name]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.channels, name)
	}
}

// LeaveAll removes connID from every channel, as on connection teardown.
func (r *Registry) LeaveAll(connID string) {
	for name, members := range r.channels {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.channels, name)
			}
		}
	}
}

// Members returns the IDs subscribed to name, in no particular order. The
// slice is a copy, safe to hold across registry mutations.
func (r *Registry) Members(name string) []string {
	members := r.channels[name]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// IsMember reports whether connID is subscribed to name.
func (r *Registry) IsMember(connID, name string) bool {
	_, ok := r.channels[name][connID]
	return ok
}

// Count returns the number of channels with at least one member.
func (r *Registry) Count() int {
	return len(r.channels)
}
