package broker

import "sync"

// GroupRegistry maps a vehicle identifier to the set of connections
// currently subscribed to it. Safe for concurrent use; the lock is only
// ever held for map bookkeeping, never across I/O.
type GroupRegistry struct {
	mutex  sync.RWMutex
	groups map[string]map[*Connection]struct{}
}

func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{
		groups: map[string]map[*Connection]struct{}{},
	}
}

func (r *GroupRegistry) Add(vehicleRef string, connection *Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	group, exists := r.groups[vehicleRef]
	if !exists {
		group = map[*Connection]struct{}{}
		r.groups[vehicleRef] = group
	}

	group[connection] = struct{}{}
}

// Remove is a no-op if the connection was never a member. Empty groups are
// pruned so the registry does not grow with every vehicle ever watched.
func (r *GroupRegistry) Remove(vehicleRef string, connection *Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	group, exists := r.groups[vehicleRef]
	if !exists {
		return
	}

	delete(group, connection)

	if len(group) == 0 {
		delete(r.groups, vehicleRef)
	}
}

// Members returns a snapshot of the current group. Callers send to the
// returned connections after this lock is released.
func (r *GroupRegistry) Members(vehicleRef string) []*Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	group := r.groups[vehicleRef]

	members := make([]*Connection, 0, len(group))
	for connection := range group {
		members = append(members, connection)
	}

	return members
}

func (r *GroupRegistry) Connections() []*Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	seen := map[*Connection]struct{}{}
	var connections []*Connection

	for _, group := range r.groups {
		for connection := range group {
			if _, exists := seen[connection]; exists {
				continue
			}

			seen[connection] = struct{}{}
			connections = append(connections, connection)
		}
	}

	return connections
}

func (r *GroupRegistry) GroupCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.groups)
}

func (r *GroupRegistry) SubscriberCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, group := range r.groups {
		count += len(group)
	}

	return count
}
