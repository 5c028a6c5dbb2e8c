package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
)

// Limits applied to inbound payloads
const (
	MaxNameLength     = 100
	MaxQuestionLength = 1000
	MaxOptions        = 26
	MaxOptionLength   = 200
	MaxAnswerLength   = 200

	// MaxDurationSeconds keeps the expiry timer well inside time.Duration range
	MaxDurationSeconds = 24 * 60 * 60
)

// DecodePayload decodes an untyped frame payload into out
// FUNCTIONAL DISCOVERY: Weak typing accepts numeric answers, string poll ids
// and float durations as browsers send them
func DecodePayload(data interface{}, out interface{}) error {
	if data == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build payload decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// DecodeStudentJoin handles both payload shapes clients send for student-join
func DecodeStudentJoin(data interface{}) (*StudentJoinPayload, error) {
	payload := &StudentJoinPayload{}
	if name, ok := data.(string); ok {
		payload.Name = name
	} else if err := DecodePayload(data, payload); err != nil {
		return nil, err
	}
	return payload, payload.Validate()
}

// Validate trims the name and checks its length
func (p *StudentJoinPayload) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || len(p.Name) > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}

// Validate checks shape only; question content is not inspected
func (p *CreatePollPayload) Validate() error {
	p.Question = strings.TrimSpace(p.Question)
	if p.Question == "" || len(p.Question) > MaxQuestionLength {
		return ErrInvalidQuestion
	}
	if len(p.Options) == 0 || len(p.Options) > MaxOptions {
		return ErrInvalidOptions
	}
	for _, option := range p.Options {
		if len(option) > MaxOptionLength {
			return ErrInvalidOptions
		}
	}
	if p.Duration < 0 {
		p.Duration = 0
	}
	if p.Duration > MaxDurationSeconds {
		return ErrInvalidDuration
	}
	return nil
}

func (p *SubmitAnswerPayload) Validate() error {
	if p.PollID <= 0 {
		return ErrInvalidPollID
	}
	if p.Answer == "" || len(p.Answer) > MaxAnswerLength {
		return ErrInvalidAnswer
	}
	p.StudentName = strings.TrimSpace(p.StudentName)
	p.StudentName = truncate(p.StudentName, MaxNameLength)
	return nil
}

// truncate cuts s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (p *RemoveStudentPayload) Validate() error {
	if p.StudentID == "" {
		return ErrInvalidStudentID
	}
	return nil
}

// IsInboundEvent reports whether name is an event clients may send
func IsInboundEvent(name string) bool {
	switch name {
	case EventTeacherJoin,
		EventStudentJoin,
		EventCreatePoll,
		EventSubmitAnswer,
		EventEndPoll,
		EventRemoveStudent:
		return true
	default:
		return false
	}
}
