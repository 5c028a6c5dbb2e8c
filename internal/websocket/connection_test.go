package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pollcast/pkg/interfaces"
)

// Test WebSocket upgrader for creating test connections
var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())
	defer conn.Close()

	if conn.ID() != "conn-1" {
		t.Errorf("Expected id conn-1, got %s", conn.ID())
	}

	if cap(conn.writeCh) != 100 {
		t.Errorf("Expected write channel buffer of 100, got %d", cap(conn.writeCh))
	}
}

func TestConnection_ZeroSettingsUseDefaults(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", Settings{})
	defer conn.Close()

	if cap(conn.writeCh) != DefaultSettings().BufferSize {
		t.Errorf("Expected default buffer, got %d", cap(conn.writeCh))
	}
	if conn.writeTimeout != DefaultSettings().WriteTimeout {
		t.Errorf("Expected default write timeout, got %v", conn.writeTimeout)
	}
}

func TestConnection_WriteJSONValidData(t *testing.T) {
	wsConn, received := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"event": "new-poll"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	select {
	case frame := <-received:
		if !strings.Contains(frame, `"event":"new-poll"`) {
			t.Errorf("Unexpected frame: %s", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Frame was not delivered")
	}
}

func TestConnection_WriteJSONInvalidData(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())
	defer conn.Close()

	if err := conn.WriteJSON(make(chan int)); err != ErrInvalidJSON {
		t.Errorf("Expected ErrInvalidJSON, got %v", err)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())

	_ = conn.Close()
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done should be closed after Close")
	}
}

func TestConnection_WriteAfterClose(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())
	_ = conn.Close()

	if err := conn.WriteJSON(map[string]string{"event": "poll-ended"}); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnection_FullBufferDropsSlowConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	// No writer goroutine drains the buffer, as with a stalled peer
	conn := &Connection{
		id:           "slow",
		writeCh:      make(chan []byte, 2),
		writeTimeout: 10 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(map[string]int{"n": i}); err != nil {
			t.Fatalf("Write %d should fit in the buffer, got %v", i, err)
		}
	}

	start := time.Now()
	if err := conn.WriteJSON(map[string]int{"n": 2}); err != ErrSendBufferFull {
		t.Errorf("Expected ErrSendBufferFull, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Write to a full buffer blocked for %v", elapsed)
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Slow consumer should be closed")
	}
	if err := conn.WriteJSON(map[string]int{"n": 3}); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed after drop, got %v", err)
	}
}

func TestConnection_ConcurrentWritesAndClose(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				// Errors after close are expected; panics are not
				_ = conn.WriteJSON(map[string]int{"n": n, "j": j})
			}
		}(i)
	}

	time.Sleep(5 * time.Millisecond)
	_ = conn.Close()
	wg.Wait()
}

func TestConnection_PeerGoneClosesConnection(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)

	conn := NewConnection(wsConn, "conn-1", DefaultSettings())
	defer conn.Close()

	// Closing the underlying socket makes the next write fail
	_ = wsConn.UnderlyingConn().Close()
	_ = conn.WriteJSON(map[string]string{"event": "first"})

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Write failure should close the connection")
	}
}

// createTestWebSocketConnection dials a server that forwards every text frame it reads
func createTestWebSocketConnection(t *testing.T) (*websocket.Conn, <-chan string) {
	t.Helper()

	received := make(chan string, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			select {
			case received <- string(data):
			default:
			}
		}
	}))
	t.Cleanup(func() { server.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, received
}
