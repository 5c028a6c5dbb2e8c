package types

import (
	"time"
)

// Connection roles
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Broadcast groups
// ARCHITECTURAL DISCOVERY: Groups mirror roles so role tagging and group
// membership change together on join, removal and disconnect
const (
	GroupTeachers = "teachers"
	GroupStudents = "students"
)

// Student is a connected student keyed by connection ID
type Student struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Poll is the single poll owned by the lifecycle manager
// FUNCTIONAL DISCOVERY: Ended polls are retained with Active=false so the
// final broadcast and late readers can still reference them
type Poll struct {
	ID        int64      `json:"id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	Duration  int        `json:"duration"`
	CreatedAt time.Time  `json:"startTime"`
	Active    bool       `json:"active"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Options = append([]string(nil), p.Options...)
	if p.EndedAt != nil {
		ended := *p.EndedAt
		cp.EndedAt = &ended
	}
	return &cp
}

// Answer is one student's answer to one poll
type Answer struct {
	PollID      int64     `json:"pollId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Tally maps connection ID to that connection's latest answer
type Tally map[string]*Answer

// Results is the rendered tally sent to teachers and archived on end
type Results struct {
	PollID  int64          `json:"pollId"`
	Answers Tally          `json:"results"`
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
}

// PollRecord is the archived form of an ended poll
type PollRecord struct {
	Poll    *Poll    `json:"poll"`
	Results *Results `json:"results"`
	EndedBy string   `json:"endedBy"`
}

// Ways a poll can end
const (
	EndedByTeacher = "teacher"
	EndedByTimer   = "timer"
)

// CountAnswers counts tally answers per option. Every option is present;
// answers outside the options are counted under their own value.
func CountAnswers(options []string, tally Tally) map[string]int {
	counts := make(map[string]int, len(options))
	for _, option := range options {
		counts[option] = 0
	}
	for _, answer := range tally {
		counts[answer.Answer]++
	}
	return counts
}
