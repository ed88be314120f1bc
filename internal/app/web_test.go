package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"github.com/JojoErer/dashboard-peugeot-106/internal/maptile"
	"github.com/JojoErer/dashboard-peugeot-106/internal/sensors"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
	"github.com/JojoErer/dashboard-peugeot-106/internal/views"
)

func newTestServer(t *testing.T, maps *maptile.Renderer) (*httptest.Server, *testRig) {
	t.Helper()
	r := newRig(t, Sources{Accel: constant(sensors.Accel{X: 0.3, Z: 1})}, Options{})
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>106</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(r.dash, maps, root).Routes())
	t.Cleanup(srv.Close)
	return srv, r
}

func do(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestAPIStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/state", http.StatusOK},
		{http.MethodGet, "/api/gps", http.StatusOK},
		{http.MethodGet, "/api/map.png", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/view/next", http.StatusOK},
		{http.MethodPost, "/api/view/radar", http.StatusNotFound},
		{http.MethodPost, "/api/view/" + views.Light, http.StatusOK},
		{http.MethodPost, "/api/overlay/next", http.StatusOK},
		{http.MethodPost, "/api/buttons/next", http.StatusNoContent},
		{http.MethodPost, "/api/buttons/horn", http.StatusNotFound},
		{http.MethodPost, "/api/update", http.StatusConflict},
		{http.MethodPost, "/api/calibrate", http.StatusAccepted},
		{http.MethodPost, "/api/calibrate", http.StatusConflict},
		{http.MethodGet, "/api/view/next", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp, body := do(t, tt.method, srv.URL+tt.path)
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d want %d (%s)", tt.method, tt.path, resp.StatusCode, tt.want, body)
		}
	}
}

func TestAPIViewCommandsChangeState(t *testing.T) {
	srv, r := newTestServer(t, nil)

	_, body := do(t, http.MethodPost, srv.URL+"/api/view/next")
	var reply map[string]string
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatal(err)
	}
	if reply["currentView"] != views.Accel {
		t.Fatalf("reply = %v", reply)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/state")
	var st state.Dashboard
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.CurrentView != views.Accel || st.CurrentView != r.dash.Menu().Current() {
		t.Fatalf("state view = %q", st.CurrentView)
	}
}

func TestAPIImages(t *testing.T) {
	maps := &maptile.Renderer{
		Store:    maptile.NewDirStore(fstest.MapFS{}, maptile.XYZ),
		Zoom:     14,
		TileSize: 256,
		ViewSize: 300,
	}
	srv, _ := newTestServer(t, maps)

	tests := []struct {
		path string
		size int
	}{
		{"/api/clock.png?size=64", 64},
		{"/api/accel.png", 400},
		{"/api/accel.png?size=5", 32},
		{"/api/map.png", 300},
		{"/api/map.png?lat=48.1&lon=11.5", 300},
	}
	for _, tt := range tests {
		resp, body := do(t, http.MethodGet, srv.URL+tt.path)
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
			t.Errorf("%s: %d %s", tt.path, resp.StatusCode, resp.Header.Get("Content-Type"))
			continue
		}
		img, err := imaging.Decode(bytes.NewReader(body))
		if err != nil {
			t.Errorf("%s: %v", tt.path, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != tt.size || b.Dy() != tt.size {
			t.Errorf("%s: bounds %v want %dx%d", tt.path, b, tt.size, tt.size)
		}
	}

	if resp, _ := do(t, http.MethodGet, srv.URL+"/api/map.png?lat=north"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad lat = %d", resp.StatusCode)
	}
}

func TestStaticFiles(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := do(t, http.MethodGet, srv.URL+"/")
	if resp.StatusCode != http.StatusOK || string(body) != "<h1>106</h1>" {
		t.Fatalf("static = %d %q", resp.StatusCode, body)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	return ev
}

func TestWebSocketStreamsStateAndCommands(t *testing.T) {
	srv, r := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readEvent(t, conn)
	if first.Type != "state" || first.State == nil || first.State.CurrentView != views.Clock {
		t.Fatalf("first event = %+v", first)
	}

	if err := conn.WriteJSON(wsMessage{Action: "nextView"}); err != nil {
		t.Fatal(err)
	}
	var gotAck, gotState bool
	for !gotAck || !gotState {
		ev := readEvent(t, conn)
		switch ev.Type {
		case "ack":
			if ev.Action != "nextView" || ev.Message != views.Accel {
				t.Fatalf("ack = %+v", ev)
			}
			gotAck = true
		case "state":
			if ev.State.CurrentView == views.Accel && len(ev.Fields) > 0 {
				gotState = true
			}
		default:
			t.Fatalf("unexpected event %+v", ev)
		}
	}

	if err := conn.WriteJSON(wsMessage{Action: "fly"}); err != nil {
		t.Fatal(err)
	}
	for {
		ev := readEvent(t, conn)
		if ev.Type == "state" {
			continue
		}
		if ev.Type != "error" || ev.Message != "unknown action" {
			t.Fatalf("unknown action reply = %+v", ev)
		}
		break
	}

	// changes made elsewhere are pushed too
	r.dash.NextOverlay()
	for {
		ev := readEvent(t, conn)
		if ev.Type == "state" && !ev.State.OverlayVisible {
			break
		}
	}
}
