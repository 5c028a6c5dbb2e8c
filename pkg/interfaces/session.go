package interfaces

import "pollcast/pkg/types"

// Session handles decoded inbound events, one at a time
// ARCHITECTURAL DISCOVERY: Every method is called from the hub goroutine;
// failed preconditions are silent no-ops, never errors
type Session interface {
	HandleConnect(connID string)
	HandleDisconnect(connID string)

	TeacherJoin(connID string)
	StudentJoin(connID string, payload *types.StudentJoinPayload)
	CreatePoll(connID string, payload *types.CreatePollPayload)
	SubmitAnswer(connID string, payload *types.SubmitAnswerPayload)
	EndPoll(connID string, payload *types.EndPollPayload)
	RemoveStudent(connID string, payload *types.RemoveStudentPayload)

	// ExpirePoll ends pollID on behalf of its timer
	ExpirePoll(pollID int64)
}
