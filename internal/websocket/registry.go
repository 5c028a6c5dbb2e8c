package websocket

import (
	"log/slog"
	"sync"

	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

// Registry tracks attached connections and their broadcast groups.
// It implements interfaces.Channel.
// ARCHITECTURAL DISCOVERY: Pure connection management without business logic;
// the coordinator decides group membership, the registry only applies it
type Registry struct {
	mu          sync.RWMutex // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy broadcast patterns
	connections map[string]interfaces.Connection
	groups      map[string]map[string]interfaces.Connection // group -> connID -> Connection
	logger      *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		groups:      make(map[string]map[string]interfaces.Connection),
		logger:      logger,
	}
}

// Register attaches conn under its id
func (r *Registry) Register(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return ErrDuplicateConnection
	}
	r.connections[conn.ID()] = conn
	return nil
}

// Unregister detaches conn and drops it from every group.
// RACE CONDITION FIX: Only removes the connection if it matches the one currently registered
func (r *Registry) Unregister(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	id := conn.ID()
	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[id]
	if !exists || registered != conn {
		return
	}

	delete(r.connections, id)
	for name, members := range r.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(r.groups, name)
		}
	}
}

// Get returns the connection registered under id
func (r *Registry) Get(id string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[id]
	return conn, exists
}

// JoinGroup is ignored for ids that are not attached
func (r *Registry) JoinGroup(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connID]
	if !exists {
		return
	}
	if r.groups[group] == nil {
		r.groups[group] = make(map[string]interfaces.Connection)
	}
	r.groups[group][connID] = conn
}

// LeaveGroup is idempotent
func (r *Registry) LeaveGroup(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[group]
	if !exists {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

// Send delivers msg to one connection
func (r *Registry) Send(connID string, msg *types.Outbound) {
	conn, exists := r.Get(connID)
	if !exists {
		return
	}
	r.deliver([]interfaces.Connection{conn}, msg)
}

// Broadcast delivers msg to every member of group
func (r *Registry) Broadcast(group string, msg *types.Outbound) {
	r.mu.RLock()
	members := make([]interfaces.Connection, 0, len(r.groups[group]))
	for _, conn := range r.groups[group] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	r.deliver(members, msg)
}

// BroadcastAll delivers msg to every attached connection
func (r *Registry) BroadcastAll(msg *types.Outbound) {
	r.mu.RLock()
	all := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		all = append(all, conn)
	}
	r.mu.RUnlock()

	r.deliver(all, msg)
}

// deliver writes outside the registry lock
// FUNCTIONAL DISCOVERY: Continue delivery to other recipients even if one fails
func (r *Registry) deliver(conns []interfaces.Connection, msg *types.Outbound) {
	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			r.logger.Warn("failed to deliver message", "conn", conn.ID(), "event", msg.Event, "error", err)
		}
	}
}

// GroupMembers returns the ids currently in group
func (r *Registry) GroupMembers(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.groups[group]))
	for id := range r.groups[group] {
		ids = append(ids, id)
	}
	return ids
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"teachers":          len(r.groups[types.GroupTeachers]),
		"students":          len(r.groups[types.GroupStudents]),
	}
}

// CloseAll closes every attached connection. Each handler unregisters its own
// connection as its read loop exits.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		all = append(all, conn)
	}
	r.mu.RUnlock()

	for _, conn := range all {
		if err := conn.Close(); err != nil {
			r.logger.Debug("failed to close connection", "conn", conn.ID(), "error", err)
		}
	}
}
