package interfaces_test

import (
	"testing"

	"pollcast/internal/database"
	"pollcast/internal/feed"
	"pollcast/internal/session"
	"pollcast/internal/websocket"
	"pollcast/pkg/interfaces"
)

// ARCHITECTURAL VALIDATION TEST: Concrete components satisfy the boundaries they are wired through
var (
	_ interfaces.Connection = (*websocket.Connection)(nil)
	_ interfaces.Channel    = (*websocket.Registry)(nil)
	_ interfaces.Session    = (*session.Coordinator)(nil)
	_ interfaces.Recorder   = session.Recorders(nil)
	_ interfaces.Recorder   = (*feed.Feed)(nil)
	_ interfaces.Archive    = (*database.Store)(nil)
)

func TestArchiveIsRecorder(t *testing.T) {
	var archive interfaces.Archive = (*database.Store)(nil)
	if _, ok := archive.(interfaces.Recorder); !ok {
		t.Error("Archive must be usable wherever a Recorder is expected")
	}
}

func TestRecordersComposeAsRecorder(t *testing.T) {
	var recorders interfaces.Recorder = session.Recorders{(*feed.Feed)(nil), (*database.Store)(nil)}
	if got := len(recorders.(session.Recorders)); got != 2 {
		t.Errorf("Expected 2 recorders, got %d", got)
	}
}
