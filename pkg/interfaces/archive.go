package interfaces

import (
	"context"

	"pollcast/pkg/types"
)

// Recorder receives every poll that ends with effect
type Recorder interface {
	// Record stores or forwards an ended poll and its final results
	Record(ctx context.Context, record *types.PollRecord) error
}

// Archive is a Recorder that can also read back ended polls
// FUNCTIONAL DISCOVERY: Archived polls are history only; live state is
// never rebuilt from them
type Archive interface {
	Recorder

	// ListPolls returns ended polls newest first, at most limit entries
	ListPolls(ctx context.Context, limit int) ([]*types.PollRecord, error)

	// GetPoll returns one archived poll
	GetPoll(ctx context.Context, pollID int64) (*types.PollRecord, error)

	// HealthCheck verifies the backing store is reachable
	HealthCheck(ctx context.Context) error

	// Close releases the backing store
	Close() error
}
