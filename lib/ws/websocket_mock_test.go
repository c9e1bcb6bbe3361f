package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockWebSocketConn serves queued frames to ReadMessage and records what is written.
type mockWebSocketConn struct {
	mu       sync.Mutex
	inbound  chan []byte
	written  [][]byte
	controls [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newMockWebSocketConn() *mockWebSocketConn {
	return &mockWebSocketConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (m *mockWebSocketConn) SetReadLimit(int64) {}

func (m *mockWebSocketConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-m.inbound:
		return websocket.TextMessage, msg, nil
	case <-m.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClosed() {
		return websocket.ErrCloseSent
	}
	if messageType == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

func (m *mockWebSocketConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageType == websocket.CloseMessage {
		m.controls = append(m.controls, data)
	}
	return nil
}

func (m *mockWebSocketConn) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockWebSocketConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *mockWebSocketConn) closeFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.controls...)
}

func (m *mockWebSocketConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockWebSocketConn) SetReadDeadline(time.Time) error { return nil }

func (m *mockWebSocketConn) SetPongHandler(func(appData string) error) {}

// recordingConn is a registry entry that keeps every delivered frame.
type recordingConn struct {
	mu     sync.Mutex
	frames []string
}

func (r *recordingConn) Deliver(message []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(message))
	return true
}

func (r *recordingConn) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.frames...)
}

// fakeRegistry is an in-memory ConnectionRegistry for handler tests.
type fakeRegistry struct {
	mu    sync.Mutex
	conns map[int64]Connection
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{conns: make(map[int64]Connection)}
}

func (f *fakeRegistry) Add(connectionID int64, conn Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[connectionID] = conn
}

func (f *fakeRegistry) Remove(connectionID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, connectionID)
}

func (f *fakeRegistry) Get(connectionID int64) (Connection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.conns[connectionID]
	return conn, ok
}

func (f *fakeRegistry) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns = make(map[int64]Connection)
}

func (f *fakeRegistry) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// connect registers a recording connection under connectionID.
func (f *fakeRegistry) connect(connectionID int64) *recordingConn {
	conn := &recordingConn{}
	f.Add(connectionID, conn)
	return conn
}

// reset forgets the frames delivered so far.
func (f *fakeRegistry) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		if rc, ok := conn.(*recordingConn); ok {
			rc.mu.Lock()
			rc.frames = nil
			rc.mu.Unlock()
		}
	}
}

func (f *fakeRegistry) frames(connectionID int64) []string {
	conn, ok := f.Get(connectionID)
	if !ok {
		return nil
	}
	return conn.(*recordingConn).received()
}
