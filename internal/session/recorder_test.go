package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollcast/pkg/types"
)

func TestRecordersFanOut(t *testing.T) {
	var calls []string
	first := recorderFunc(func(context.Context, *types.PollRecord) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	second := recorderFunc(func(context.Context, *types.PollRecord) error {
		calls = append(calls, "second")
		return nil
	})

	err := Recorders{first, nil, second}.Record(context.Background(), &types.PollRecord{Poll: &types.Poll{ID: 1}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestRecordersEmpty(t *testing.T) {
	assert.NoError(t, Recorders{}.Record(context.Background(), &types.PollRecord{}))
}
