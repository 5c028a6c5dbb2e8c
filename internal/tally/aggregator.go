package tally

import (
	"sync"
	"time"

	"pollcast/pkg/types"
)

// PollState tells the aggregator which poll currently accepts answers
type PollState interface {
	IsActive(pollID int64) bool
}

// Aggregator records one answer per student per poll
// FUNCTIONAL DISCOVERY: Resubmission overwrites; the tally always holds the
// latest answer per connection
type Aggregator struct {
	mu      sync.RWMutex
	state   PollState
	answers map[int64]map[string]*types.Answer
	now     func() time.Time
}

// New creates an aggregator gated by state
func New(state PollState) *Aggregator {
	return &Aggregator{
		state:   state,
		answers: make(map[int64]map[string]*types.Answer),
		now:     time.Now,
	}
}

// Submit stores the answer and returns nil if the poll is not active
func (a *Aggregator) Submit(pollID int64, studentID, studentName, answer string) *types.Answer {
	if !a.state.IsActive(pollID) {
		return nil
	}

	record := &types.Answer{
		PollID:      pollID,
		StudentID:   studentID,
		StudentName: studentName,
		Answer:      answer,
		SubmittedAt: a.now(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	byStudent, exists := a.answers[pollID]
	if !exists {
		byStudent = make(map[string]*types.Answer)
		a.answers[pollID] = byStudent
	}
	byStudent[studentID] = record

	cp := *record
	return &cp
}

// Tally returns a copy of every answer recorded for pollID
func (a *Aggregator) Tally(pollID int64) types.Tally {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byStudent := a.answers[pollID]
	tally := make(types.Tally, len(byStudent))
	for studentID, answer := range byStudent {
		cp := *answer
		tally[studentID] = &cp
	}
	return tally
}

// Results renders the tally for poll with a count per option
func (a *Aggregator) Results(poll *types.Poll) *types.Results {
	if poll == nil {
		return nil
	}

	tally := a.Tally(poll.ID)
	return &types.Results{
		PollID:  poll.ID,
		Answers: tally,
		Counts:  types.CountAnswers(poll.Options, tally),
		Total:   len(tally),
	}
}

// Clear drops all answers for pollID
func (a *Aggregator) Clear(pollID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.answers, pollID)
}

// Polls returns how many polls currently hold answers
func (a *Aggregator) Polls() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.answers)
}
