package types

import (
	"time"
)

// Inbound event names
const (
	EventTeacherJoin   = "teacher-join"
	EventStudentJoin   = "student-join"
	EventCreatePoll    = "create-poll"
	EventSubmitAnswer  = "submit-answer"
	EventEndPoll       = "end-poll"
	EventRemoveStudent = "remove-student"
)

// Outbound event names
const (
	EventStudentsUpdated = "students-updated"
	EventStudentJoined   = "student-joined"
	EventStudentLeft     = "student-left"
	EventNewPoll         = "new-poll"
	EventStudentAnswer   = "student-answer"
	EventPollResults     = "poll-results"
	EventPollEnded       = "poll-ended"
	EventStudentRemoved  = "student-removed"
)

// Inbound is a client frame: {"event": "...", "data": ...}
// ARCHITECTURAL DISCOVERY: Data stays untyped until the router knows the
// event name, then it is decoded into the matching payload struct
type Inbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Outbound is a server frame delivered to one or more connections
type Outbound struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewOutbound stamps an outbound frame with the current time
func NewOutbound(event string, data interface{}) *Outbound {
	return &Outbound{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// StudentJoinPayload accepts either {"name": "..."} or a bare string
type StudentJoinPayload struct {
	Name string `json:"name"`
}

type CreatePollPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

type SubmitAnswerPayload struct {
	PollID      int64  `json:"pollId"`
	Answer      string `json:"answer"`
	StudentName string `json:"studentName"`
}

// EndPollPayload with PollID 0 targets the current poll
type EndPollPayload struct {
	PollID int64 `json:"pollId"`
}

type RemoveStudentPayload struct {
	StudentID string `json:"studentId"`
}

// PollEndedPayload is broadcast to every connection once per poll
type PollEndedPayload struct {
	*Results
	Poll *Poll `json:"poll"`
}

type StudentRemovedPayload struct {
	StudentID string `json:"studentId"`
	Message   string `json:"message"`
}
