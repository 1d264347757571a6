package livefeed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readCommand(t *testing.T, conn *websocket.Conn) mapsurface.Command {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var cmd mapsurface.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return cmd
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_LateJoinerGetsSnapshotThenCommands(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctrl := mapsurface.NewController(zerolog.Nop(), mapsurface.Options{Sink: hub})
	hub.Attach(ctrl)

	s, err := ctrl.Mount(context.Background(), mapsurface.NewAnchor("map"))
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := s.AddLayer(mapsurface.Layer{ID: "roads-1", Kind: mapsurface.KindRoads, ZIndex: 10}); err != nil {
		t.Fatalf("add layer: %v", err)
	}

	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, srv)

	first := readCommand(t, conn)
	if first.Op != OpSnapshot || first.Snapshot == nil {
		t.Fatalf("expected snapshot first, got %#v", first)
	}
	if first.Snapshot.SurfaceID != s.ID() || len(first.Snapshot.Layers) != 2 {
		t.Fatalf("expected snapshot of the live surface with tiles and roads, got %#v", first.Snapshot)
	}

	waitForClients(t, hub, 1)
	if err := s.FlyTo(domain.LatLon{Lat: 50.82, Lon: -0.137}); err != nil {
		t.Fatalf("fly: %v", err)
	}
	next := readCommand(t, conn)
	if next.Op != mapsurface.OpFlyTo || next.Camera == nil || next.Camera.Zoom != mapsurface.InspectionZoom {
		t.Fatalf("expected fly_to command, got %#v", next)
	}
}

func TestHub_SnapshotWithoutSurface(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	first := readCommand(t, conn)
	if first.Op != OpSnapshot || first.Snapshot != nil {
		t.Fatalf("expected empty snapshot, got %#v", first)
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readCommand(t, conn)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)

	// Publishing with no subscribers is a no-op.
	hub.Publish(mapsurface.Command{Op: mapsurface.OpRemoveLayer, LayerID: "x"})
}
