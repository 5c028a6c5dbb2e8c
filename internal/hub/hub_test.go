package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pollcast/pkg/types"
)

// trace records calls from the hub goroutine in order
type trace struct {
	mu     sync.Mutex
	calls  []string
	notify chan string
}

func newTrace() *trace {
	return &trace{notify: make(chan string, 100)}
}

func (tr *trace) add(call string) {
	tr.mu.Lock()
	tr.calls = append(tr.calls, call)
	tr.mu.Unlock()
	tr.notify <- call
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

type fakeRouter struct {
	tr  *trace
	err error
}

func (r *fakeRouter) Route(connID string, msg *types.Inbound) error {
	if msg != nil && msg.Event == "panic" {
		panic("boom")
	}
	r.tr.add("route:" + connID + ":" + msg.Event)
	return r.err
}

func (r *fakeRouter) Forget(connID string) { r.tr.add("forget:" + connID) }

type fakeSession struct {
	tr *trace
}

func (s *fakeSession) HandleConnect(connID string) { s.tr.add("connect:" + connID) }
func (s *fakeSession) HandleDisconnect(connID string) { s.tr.add("disconnect:" + connID) }
func (s *fakeSession) TeacherJoin(string) {}
func (s *fakeSession) StudentJoin(string, *types.StudentJoinPayload) {}
func (s *fakeSession) CreatePoll(string, *types.CreatePollPayload) {}
func (s *fakeSession) SubmitAnswer(string, *types.SubmitAnswerPayload) {}
func (s *fakeSession) EndPoll(string, *types.EndPollPayload) {}
func (s *fakeSession) RemoveStudent(string, *types.RemoveStudentPayload) {}
func (s *fakeSession) ExpirePoll(pollID int64) { s.tr.add(fmt.Sprintf("expire:%d", pollID)) }

func newTestHub(t *testing.T) (*Hub, *trace, *fakeRouter) {
	t.Helper()
	tr := newTrace()
	router := &fakeRouter{tr: tr}
	return NewHub(router, &fakeSession{tr: tr}, 10, nil), tr, router
}

func waitCalls(t *testing.T, tr *trace, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-tr.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out after %d of %d calls: %v", i, n, tr.snapshot())
		}
	}
}

// TestHub_StartStop tests functional validation - hub lifecycle management
func TestHub_StartStop(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()

	if err := hub.Start(ctx); err != nil {
		t.Errorf("Expected no error starting hub, got %v", err)
	}
	if err := hub.Start(ctx); err != ErrHubAlreadyRunning {
		t.Errorf("Expected ErrHubAlreadyRunning, got %v", err)
	}
	if !hub.Running() {
		t.Error("Hub should report running")
	}

	if err := hub.Stop(); err != nil {
		t.Errorf("Expected no error stopping hub, got %v", err)
	}
	if err := hub.Stop(); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}

	// Restart after a clean stop
	if err := hub.Start(ctx); err != nil {
		t.Errorf("Expected restart to succeed, got %v", err)
	}
	_ = hub.Stop()
}

func TestHub_SubmitWhenStopped(t *testing.T) {
	hub, tr, _ := newTestHub(t)

	if err := hub.Submit(Event{Kind: EventConnect, ConnID: "c1"}); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}

	// Dispatcher methods swallow the error
	hub.Connect("c1")
	hub.Expire(1)

	if calls := tr.snapshot(); len(calls) != 0 {
		t.Errorf("Stopped hub should not process events, got %v", calls)
	}
}

func TestHub_ProcessesEventsInOrder(t *testing.T) {
	hub, tr, _ := newTestHub(t)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	defer func() { _ = hub.Stop() }()

	hub.Connect("c1")
	hub.Dispatch("c1", &types.Inbound{Event: types.EventTeacherJoin})
	hub.Expire(7)
	hub.Disconnect("c1")

	waitCalls(t, tr, 5)

	want := "[connect:c1 route:c1:teacher-join expire:7 forget:c1 disconnect:c1]"
	if got := fmt.Sprint(tr.snapshot()); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestHub_RouteErrorsDoNotStopLoop(t *testing.T) {
	hub, tr, router := newTestHub(t)
	router.err = errors.New("rejected")
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	defer func() { _ = hub.Stop() }()

	hub.Dispatch("c1", &types.Inbound{Event: "first"})
	hub.Dispatch("c1", &types.Inbound{Event: "second"})

	waitCalls(t, tr, 2)
}

func TestHub_RecoversFromPanic(t *testing.T) {
	hub, tr, _ := newTestHub(t)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	defer func() { _ = hub.Stop() }()

	hub.Dispatch("c1", &types.Inbound{Event: "panic"})
	hub.Connect("c2")

	waitCalls(t, tr, 1)
	if got := tr.snapshot(); len(got) != 1 || got[0] != "connect:c2" {
		t.Errorf("Expected loop to continue after panic, got %v", got)
	}
}

func TestHub_ContextCancelStopsLoop(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Hub should stop when its context is cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Submit(Event{Kind: EventConnect}); err != ErrHubNotRunning {
		t.Errorf("Expected ErrHubNotRunning, got %v", err)
	}
}

// TestHub_ConcurrentSubmit tests technical validation - many producers, one consumer
func TestHub_ConcurrentSubmit(t *testing.T) {
	hub, tr, _ := newTestHub(t)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}
	defer func() { _ = hub.Stop() }()

	const producers = 10
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.Connect(fmt.Sprintf("c%d", n))
		}(i)
	}
	wg.Wait()

	waitCalls(t, tr, producers)
}

func TestHub_StopUnblocksProducers(t *testing.T) {
	tr := newTrace()
	block := make(chan struct{})
	session := &blockingSession{fakeSession: fakeSession{tr: tr}, block: block}
	hub := NewHub(&fakeRouter{tr: tr}, session, 1, nil)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}

	hub.Connect("busy") // occupies the loop
	hub.Connect("queued")

	result := make(chan error, 1)
	go func() { result <- hub.Submit(Event{Kind: EventConnect, ConnID: "waiting"}) }()

	stopped := make(chan struct{})
	go func() {
		_ = hub.Stop()
		close(stopped)
	}()

	select {
	case err := <-result:
		if err != ErrHubNotRunning {
			t.Errorf("Expected ErrHubNotRunning for blocked producer, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Blocked producer was not released by Stop")
	}

	close(block)
	<-stopped
}

type blockingSession struct {
	fakeSession
	block chan struct{}
	once  sync.Once
}

func (s *blockingSession) HandleConnect(connID string) {
	s.once.Do(func() { <-s.block })
}
