package interfaces

import "pollcast/pkg/types"

// Channel is the broadcast surface the session coordinator talks to
// ARCHITECTURAL DISCOVERY: Group semantics live behind this interface so the
// coordinator never handles connections directly
type Channel interface {
	// Send delivers msg to one connection; unknown ids are ignored
	Send(connID string, msg *types.Outbound)

	// JoinGroup adds a connection to a named group
	JoinGroup(connID, group string)

	// LeaveGroup removes a connection from a named group
	LeaveGroup(connID, group string)

	// Broadcast delivers msg to every member of group
	Broadcast(group string, msg *types.Outbound)

	// BroadcastAll delivers msg to every attached connection
	BroadcastAll(msg *types.Outbound)
}
