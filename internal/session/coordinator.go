package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pollcast/internal/poll"
	"pollcast/internal/roster"
	"pollcast/internal/tally"
	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

const removedMessage = "You have been removed from the session by the teacher"

// Coordinator implements interfaces.Session
// ARCHITECTURAL DISCOVERY: All core state (roster, current poll, answers,
// role tags) is owned here and injected per instance, never global
type Coordinator struct {
	channel  interfaces.Channel
	recorder interfaces.Recorder
	logger   *slog.Logger

	roster  *roster.Roster
	polls   *poll.Manager
	answers *tally.Aggregator

	mu             sync.RWMutex
	roles          map[string]string // connID -> role tag
	expiryQueue    func(pollID int64)
	archiveTimeout time.Duration
	running        bool

	pending sync.WaitGroup // in-flight archive writes
}

// Option configures a Coordinator
type Option func(*config)

type config struct {
	recorder       interfaces.Recorder
	logger         *slog.Logger
	scheduler      poll.Scheduler
	archiveTimeout time.Duration
}

// WithRecorder archives every poll that ends with effect
func WithRecorder(r interfaces.Recorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithScheduler replaces the wall-clock expiry scheduler
func WithScheduler(s poll.Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithArchiveTimeout bounds each archive write
func WithArchiveTimeout(d time.Duration) Option {
	return func(c *config) {
		c.archiveTimeout = d
	}
}

// NewCoordinator creates a session bound to channel
func NewCoordinator(channel interfaces.Channel, opts ...Option) *Coordinator {
	cfg := &config{
		logger:         slog.Default(),
		archiveTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Coordinator{
		channel:        channel,
		recorder:       cfg.recorder,
		logger:         cfg.logger,
		roster:         roster.New(),
		roles:          make(map[string]string),
		archiveTimeout: cfg.archiveTimeout,
	}

	pollOpts := []poll.Option{}
	if cfg.scheduler != nil {
		pollOpts = append(pollOpts, poll.WithScheduler(cfg.scheduler))
	}
	c.polls = poll.NewManager(c.onExpire, pollOpts...)
	c.answers = tally.New(c.polls)

	return c
}

// SetExpiryQueue routes timer expiries through f instead of handling them
// on the timer goroutine. The hub uses this to serialize expiry with
// inbound events.
func (c *Coordinator) SetExpiryQueue(f func(pollID int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiryQueue = f
}

func (c *Coordinator) onExpire(pollID int64) {
	c.mu.RLock()
	queue := c.expiryQueue
	c.mu.RUnlock()

	if queue != nil {
		queue(pollID)
		return
	}
	c.ExpirePoll(pollID)
}

// Start marks the session live
func (c *Coordinator) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	c.logger.Info("session started")
}

// Stop cancels pending expiry and waits for in-flight archive writes
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.polls.Stop()
	c.pending.Wait()
	c.logger.Info("session stopped")
}

// Running reports whether Start has been called without a matching Stop
func (c *Coordinator) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// HandleConnect records nothing until the connection joins with a role
func (c *Coordinator) HandleConnect(connID string) {
	c.logger.Debug("client connected", "conn", connID)
}

// HandleDisconnect drops the role tag and, for students, the roster entry
func (c *Coordinator) HandleDisconnect(connID string) {
	role := c.untag(connID)
	c.logger.Info("client disconnected", "conn", connID, "role", role)

	switch role {
	case types.RoleTeacher:
		c.channel.LeaveGroup(connID, types.GroupTeachers)
	case types.RoleStudent:
		c.channel.LeaveGroup(connID, types.GroupStudents)
	}

	if student, ok := c.roster.Leave(connID); ok {
		c.notifyRosterChange(types.EventStudentLeft, student)
	}
}

// TeacherJoin tags connID as teacher and replays roster and any active poll
func (c *Coordinator) TeacherJoin(connID string) {
	if c.Role(connID) == types.RoleStudent {
		c.channel.LeaveGroup(connID, types.GroupStudents)
		if student, ok := c.roster.Leave(connID); ok {
			c.notifyRosterChange(types.EventStudentLeft, student)
		}
	}

	c.tag(connID, types.RoleTeacher)
	c.channel.JoinGroup(connID, types.GroupTeachers)
	c.logger.Info("teacher joined", "conn", connID)

	c.channel.Send(connID, types.NewOutbound(types.EventStudentsUpdated, c.roster.Snapshot()))

	if active, ok := c.polls.ActivePoll(); ok {
		c.channel.Send(connID, types.NewOutbound(types.EventNewPoll, active))
		c.channel.Send(connID, types.NewOutbound(types.EventPollResults, c.answers.Results(active)))
	}
}

// StudentJoin adds connID to the roster and replays the active poll to it alone
func (c *Coordinator) StudentJoin(connID string, payload *types.StudentJoinPayload) {
	if c.Role(connID) == types.RoleTeacher {
		c.channel.LeaveGroup(connID, types.GroupTeachers)
	}

	c.tag(connID, types.RoleStudent)
	c.channel.JoinGroup(connID, types.GroupStudents)

	student := c.roster.Join(connID, payload.Name)
	c.logger.Info("student joined", "conn", connID, "name", student.Name, "students", c.roster.Len())

	c.notifyRosterChange(types.EventStudentJoined, student)

	if active, ok := c.polls.ActivePoll(); ok {
		c.channel.Send(connID, types.NewOutbound(types.EventNewPoll, active))
	}
}

// CreatePoll starts a new poll for everyone; teachers only
func (c *Coordinator) CreatePoll(connID string, payload *types.CreatePollPayload) {
	if !c.isTeacher(connID) {
		c.logger.Warn("create-poll from non-teacher dropped", "conn", connID)
		return
	}

	// FUNCTIONAL DISCOVERY: A still-active prior poll is superseded silently,
	// no poll-ended is emitted for it
	if previous := c.polls.Current(); previous != nil {
		c.answers.Clear(previous.ID)
		if previous.Active {
			c.logger.Info("active poll superseded", "poll", previous.ID)
		}
	}

	created := c.polls.Create(payload.Question, payload.Options, payload.Duration)
	c.logger.Info("poll created", "poll", created.ID, "options", len(created.Options), "duration", created.Duration)

	c.channel.BroadcastAll(types.NewOutbound(types.EventNewPoll, created))
}

// SubmitAnswer records an answer for the active poll and reports it to teachers
func (c *Coordinator) SubmitAnswer(connID string, payload *types.SubmitAnswerPayload) {
	if c.isTeacher(connID) {
		return
	}

	active, ok := c.polls.ActivePoll()
	if !ok || active.ID != payload.PollID {
		c.logger.Debug("answer for inactive poll dropped", "conn", connID, "poll", payload.PollID)
		return
	}

	name := payload.StudentName
	if name == "" {
		if student, ok := c.roster.Get(connID); ok {
			name = student.Name
		}
	}

	answer := c.answers.Submit(active.ID, connID, name, payload.Answer)
	if answer == nil {
		return
	}

	c.channel.Broadcast(types.GroupTeachers, types.NewOutbound(types.EventStudentAnswer, answer))
	c.channel.Broadcast(types.GroupTeachers, types.NewOutbound(types.EventPollResults, c.answers.Results(active)))
}

// EndPoll ends the targeted poll; PollID 0 targets the current poll. Teachers only.
func (c *Coordinator) EndPoll(connID string, payload *types.EndPollPayload) {
	if !c.isTeacher(connID) {
		c.logger.Warn("end-poll from non-teacher dropped", "conn", connID)
		return
	}

	pollID := payload.PollID
	if pollID == 0 {
		current := c.polls.Current()
		if current == nil {
			return
		}
		pollID = current.ID
	}

	c.finish(pollID, types.EndedByTeacher)
}

// ExpirePoll ends pollID on behalf of its timer
func (c *Coordinator) ExpirePoll(pollID int64) {
	c.finish(pollID, types.EndedByTimer)
}

// finish broadcasts poll-ended at most once per poll
func (c *Coordinator) finish(pollID int64, endedBy string) {
	ended, ok := c.polls.End(pollID)
	if !ok {
		return
	}

	results := c.answers.Results(ended)
	c.logger.Info("poll ended", "poll", ended.ID, "by", endedBy, "answers", results.Total)

	c.channel.BroadcastAll(types.NewOutbound(types.EventPollEnded, &types.PollEndedPayload{
		Results: results,
		Poll:    ended,
	}))

	c.archive(&types.PollRecord{Poll: ended, Results: results, EndedBy: endedBy})
}

// archive hands the record off without blocking the event loop
func (c *Coordinator) archive(record *types.PollRecord) {
	if c.recorder == nil {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.archiveTimeout)
		defer cancel()

		if err := c.recorder.Record(ctx, record); err != nil {
			c.logger.Error("failed to archive poll", "poll", record.Poll.ID, "error", err)
		}
	}()
}

// RemoveStudent evicts a student from the roster; teachers only
func (c *Coordinator) RemoveStudent(connID string, payload *types.RemoveStudentPayload) {
	if !c.isTeacher(connID) {
		c.logger.Warn("remove-student from non-teacher dropped", "conn", connID)
		return
	}

	student, ok := c.roster.Leave(payload.StudentID)
	if !ok {
		return
	}

	if c.Role(payload.StudentID) == types.RoleStudent {
		c.untag(payload.StudentID)
		c.channel.LeaveGroup(payload.StudentID, types.GroupStudents)
	}
	c.logger.Info("student removed", "conn", payload.StudentID, "by", connID)

	c.channel.Send(payload.StudentID, types.NewOutbound(types.EventStudentRemoved, &types.StudentRemovedPayload{
		StudentID: payload.StudentID,
		Message:   removedMessage,
	}))
	c.notifyRosterChange(types.EventStudentLeft, student)
}

// notifyRosterChange sends the roster snapshot and the individual change to teachers
func (c *Coordinator) notifyRosterChange(event string, student *types.Student) {
	c.channel.Broadcast(types.GroupTeachers, types.NewOutbound(types.EventStudentsUpdated, c.roster.Snapshot()))
	c.channel.Broadcast(types.GroupTeachers, types.NewOutbound(event, student))
}

// Role returns the role tag for connID, or "" if it has not joined
func (c *Coordinator) Role(connID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roles[connID]
}

func (c *Coordinator) isTeacher(connID string) bool {
	return c.Role(connID) == types.RoleTeacher
}

func (c *Coordinator) tag(connID, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[connID] = role
}

func (c *Coordinator) untag(connID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	role := c.roles[connID]
	delete(c.roles, connID)
	return role
}

// Students returns the roster snapshot
func (c *Coordinator) Students() []*types.Student {
	return c.roster.Snapshot()
}

// CurrentPoll returns the latest poll regardless of state, or nil
func (c *Coordinator) CurrentPoll() *types.Poll {
	return c.polls.Current()
}

// CurrentResults renders the tally of the latest poll, or nil
func (c *Coordinator) CurrentResults() *types.Results {
	return c.answers.Results(c.polls.Current())
}
