package realtime

import (
	"sort"
	"sync"
)

// Registry tracks which users currently hold live connections. A user
// may hold several at once (multiple tabs, multiple devices).
type Registry interface {
	// Add registers a connection under its user id and reports whether
	// it is the user's first live connection.
	Add(c *Connection) (first bool)
	// Remove drops a connection and reports whether the user now has
	// none left.
	Remove(c *Connection) (last bool)
	// Connections returns the live connections of one user.
	Connections(userID int64) []*Connection
	// OnlineIDs returns the ids of all users with at least one live
	// connection, ascending.
	OnlineIDs() []int64
	// All returns every live connection.
	All() []*Connection
	// Count returns the number of live connections.
	Count() int
}

// MemoryRegistry is the in-process Registry used by a single instance.
type MemoryRegistry struct {
	mu        sync.RWMutex
	userConns map[int64]map[int64]*Connection // userID -> connID -> Connection
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		userConns: make(map[int64]map[int64]*Connection),
	}
}

func (r *MemoryRegistry) Add(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.userConns[c.UserID()]
	if !ok {
		conns = make(map[int64]*Connection)
		r.userConns[c.UserID()] = conns
	}
	conns[c.ID()] = c
	return len(conns) == 1
}

func (r *MemoryRegistry) Remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.userConns[c.UserID()]
	if !ok {
		return false
	}
	if _, ok := conns[c.ID()]; !ok {
		return false
	}
	delete(conns, c.ID())
	if len(conns) == 0 {
		delete(r.userConns, c.UserID())
		return true
	}
	return false
}

func (r *MemoryRegistry) Connections(userID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.userConns[userID]
	if !ok {
		return nil
	}
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *MemoryRegistry) OnlineIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.userConns))
	for id := range r.userConns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *MemoryRegistry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0)
	for _, conns := range r.userConns {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conns := range r.userConns {
		n += len(conns)
	}
	return n
}
