package poll

import "time"

// Timer is a pending expiry that can be cancelled
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d elapses
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// clockScheduler schedules on the runtime timer heap
type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
