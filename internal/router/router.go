package router

import (
	"fmt"
	"log/slog"

	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

// Router decodes inbound frames and invokes the matching session operation
// ARCHITECTURAL DISCOVERY: Pure event routing without state; role checks and
// mutations belong to the session
type Router struct {
	session     interfaces.Session
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewRouter creates a router over session. A nil limiter disables rate limiting.
func NewRouter(session interfaces.Session, limiter *RateLimiter, logger *slog.Logger) *Router {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		session:     session,
		rateLimiter: limiter,
		logger:      logger,
	}
}

// Route validates msg and dispatches it. Returned errors describe why a frame
// was dropped; the connection is never closed because of them.
func (r *Router) Route(connID string, msg *types.Inbound) error {
	if msg == nil || !types.IsInboundEvent(msg.Event) {
		return ErrUnknownEvent
	}

	// TECHNICAL DISCOVERY: Rate limiting applied per connection before decoding
	if !r.rateLimiter.Allow(connID) {
		return ErrRateLimitExceeded
	}

	switch msg.Event {
	case types.EventTeacherJoin:
		r.session.TeacherJoin(connID)

	case types.EventStudentJoin:
		payload, err := types.DecodeStudentJoin(msg.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", msg.Event, err)
		}
		r.session.StudentJoin(connID, payload)

	case types.EventCreatePoll:
		payload := &types.CreatePollPayload{}
		if err := decodeAndValidate(msg.Data, payload, payload.Validate); err != nil {
			return fmt.Errorf("%s: %w", msg.Event, err)
		}
		r.session.CreatePoll(connID, payload)

	case types.EventSubmitAnswer:
		payload := &types.SubmitAnswerPayload{}
		if err := decodeAndValidate(msg.Data, payload, payload.Validate); err != nil {
			return fmt.Errorf("%s: %w", msg.Event, err)
		}
		r.session.SubmitAnswer(connID, payload)

	case types.EventEndPoll:
		// FUNCTIONAL DISCOVERY: Missing payload or pollId targets the current poll
		payload := &types.EndPollPayload{}
		if err := types.DecodePayload(msg.Data, payload); err != nil {
			return fmt.Errorf("%s: %w", msg.Event, err)
		}
		r.session.EndPoll(connID, payload)

	case types.EventRemoveStudent:
		payload := &types.RemoveStudentPayload{}
		if err := decodeAndValidate(msg.Data, payload, payload.Validate); err != nil {
			return fmt.Errorf("%s: %w", msg.Event, err)
		}
		r.session.RemoveStudent(connID, payload)
	}

	return nil
}

// Forget releases per-connection routing state
func (r *Router) Forget(connID string) {
	r.rateLimiter.Forget(connID)
}

func decodeAndValidate(data interface{}, out interface{}, validate func() error) error {
	if err := types.DecodePayload(data, out); err != nil {
		return err
	}
	return validate()
}
