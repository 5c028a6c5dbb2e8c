package session

import (
	"context"
	"errors"
	"fmt"

	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

// Recorders fans one ended poll out to several recorders
// FUNCTIONAL DISCOVERY: Every recorder is attempted even when an earlier one fails
type Recorders []interfaces.Recorder

func (rs Recorders) Record(ctx context.Context, record *types.PollRecord) error {
	var errs []error
	for i, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("recorder %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
