package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"lessoncast/internal/realtime"
	"lessoncast/internal/websocket"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// mockSessions knows a fixed set of local sessions.
type mockSessions struct {
	mu    sync.Mutex
	snaps map[string]types.PlaybackSnapshot
}

func newMockSessions(ids ...string) *mockSessions {
	m := &mockSessions{snaps: map[string]types.PlaybackSnapshot{}}
	for _, id := range ids {
		m.snaps[id] = types.PlaybackSnapshot{SessionID: id, SlideCount: 3, State: types.StateIdle}
	}
	return m
}

func (m *mockSessions) GetSession(id string) (types.PlaybackSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return types.PlaybackSnapshot{}, interfaces.ErrSessionNotFound
	}
	return snap, nil
}

func (m *mockSessions) ValidateSessionAccess(sessionID, userID, role string) error {
	_, err := m.GetSession(sessionID)
	return err
}

type nopRouter struct{}

func (nopRouter) RouteCommand(ctx context.Context, sender interfaces.Connection, cmd types.Command) (types.PlaybackSnapshot, error) {
	return types.PlaybackSnapshot{}, nil
}

type testHub struct {
	hub    *Hub
	server *httptest.Server
}

func startHub(t *testing.T, sessions Sessions, bus realtime.Bus) *testHub {
	t.Helper()
	h := NewHub(websocket.NewRegistry(nil), sessions, bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})

	handler := websocket.NewHandler(h, h, nopRouter{}, websocket.DefaultConfig(), nil)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	return &testHub{hub: h, server: server}
}

func (th *testHub) dial(t *testing.T, sessionID, userID, role string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(th.server.URL, "http") + "/ws?session_id=" + sessionID + "&user_id=" + userID + "&role=" + role
	c, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *gorillaws.Conn) types.PlaybackEvent {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev types.PlaybackEvent
	if err := c.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return ev
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub(websocket.NewRegistry(nil), newMockSessions(), nil, nil)
	if err := h.Stop(); !errors.Is(err, ErrHubNotRunning) {
		t.Errorf("Stop before Start = %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.Start(context.Background()); !errors.Is(err, ErrHubAlreadyRunning) {
		t.Errorf("second Start = %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub loop did not exit")
	}
	if err := h.RegisterConnection(nil); !errors.Is(err, ErrHubNotRunning) {
		t.Errorf("RegisterConnection after Stop = %v", err)
	}
}

func TestHub_SnapshotBeforeEvents(t *testing.T) {
	th := startHub(t, newMockSessions("s1"), nil)
	viewer := th.dial(t, "s1", "watcher", interfaces.RoleViewer)

	first := readEvent(t, viewer)
	if first.Type != types.EventState || first.Snapshot.SlideCount != 3 {
		t.Fatalf("first frame = %+v, want current snapshot", first)
	}

	th.hub.Publish(types.PlaybackEvent{
		Type:      types.EventState,
		SessionID: "s1",
		Snapshot:  types.PlaybackSnapshot{SessionID: "s1", CurrentSlideIndex: 1},
	})
	th.hub.Publish(types.PlaybackEvent{Type: types.EventState, SessionID: "other"})

	next := readEvent(t, viewer)
	if next.Snapshot.CurrentSlideIndex != 1 {
		t.Errorf("next frame = %+v", next)
	}
}

func TestHub_ClosedEventDropsConnections(t *testing.T) {
	th := startHub(t, newMockSessions("s1"), nil)
	owner := th.dial(t, "s1", "owner", interfaces.RoleController)
	readEvent(t, owner)

	th.hub.Publish(types.PlaybackEvent{Type: types.EventClosed, SessionID: "s1"})

	if ev := readEvent(t, owner); ev.Type != types.EventClosed {
		t.Errorf("frame = %+v, want closed event", ev)
	}
	_ = owner.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := owner.ReadMessage(); err == nil {
		t.Error("socket should be closed after the closed event")
	}

	deadline := time.Now().Add(2 * time.Second)
	for th.hub.Stats()["total_connections"] != 0 {
		if time.Now().After(deadline) {
			t.Fatal("registry still holds the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_CrossInstanceDelivery(t *testing.T) {
	network := realtime.NewMemoryNetwork()
	hostSessions := newMockSessions("s1")
	host := startHub(t, hostSessions, network.Join("host"))
	edge := startHub(t, newMockSessions(), network.Join("edge"))

	// Unknown on the edge until the host announces it.
	if err := edge.hub.ValidateSessionAccess("s1", "watcher", interfaces.RoleViewer); !errors.Is(err, interfaces.ErrSessionNotFound) {
		t.Fatalf("access before any event = %v", err)
	}

	host.hub.Publish(types.PlaybackEvent{
		Type:      types.EventState,
		SessionID: "s1",
		Snapshot:  types.PlaybackSnapshot{SessionID: "s1", CurrentSlideIndex: 2},
	})

	deadline := time.Now().Add(2 * time.Second)
	for edge.hub.ValidateSessionAccess("s1", "watcher", interfaces.RoleViewer) != nil {
		if time.Now().After(deadline) {
			t.Fatal("edge never learned about the remote session")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := edge.hub.ValidateSessionAccess("s1", "owner", interfaces.RoleController); err == nil {
		t.Error("remote sessions cannot be controlled from the edge")
	}

	viewer := edge.dial(t, "s1", "watcher", interfaces.RoleViewer)
	if first := readEvent(t, viewer); first.Snapshot.CurrentSlideIndex != 2 {
		t.Errorf("edge greeting = %+v, want remote snapshot", first)
	}

	host.hub.Publish(types.PlaybackEvent{
		Type:      types.EventState,
		SessionID: "s1",
		Snapshot:  types.PlaybackSnapshot{SessionID: "s1", CurrentSlideIndex: 3},
	})
	ev := readEvent(t, viewer)
	if ev.Snapshot.CurrentSlideIndex != 3 || ev.Origin != "host" {
		t.Errorf("forwarded event = %+v", ev)
	}
}
