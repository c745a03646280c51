package server

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/AwesomeSam9523/Spades/internal/game"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(game.NewMemStore())
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, user string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", user)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

// createRoom creates a room as user and returns its id path and code.
func createRoom(t *testing.T, ts *httptest.Server, user string) (string, string) {
	t.Helper()
	resp, body := doRequest(t, ts, http.MethodPost, "/api/rooms", user, map[string]any{
		"name": "Friday Spades",
	})
	wantStatus(t, resp, http.StatusCreated)
	id, ok := body["room_id"].(float64)
	if !ok {
		t.Fatalf("missing room_id in %v", body)
	}
	code, _ := body["join_code"].(string)
	return strconv.Itoa(int(id)), code
}

func joinRoom(t *testing.T, ts *httptest.Server, user, code string) {
	t.Helper()
	resp, _ := doRequest(t, ts, http.MethodPost, "/api/rooms/join", user, map[string]any{
		"code": code,
	})
	wantStatus(t, resp, http.StatusOK)
}

// snapshotMembers returns member name -> member id from the room view.
func snapshotMembers(t *testing.T, ts *httptest.Server, roomPath string) map[string]uint {
	t.Helper()
	resp, body := doRequest(t, ts, http.MethodGet, "/api/rooms/"+roomPath, "", nil)
	wantStatus(t, resp, http.StatusOK)
	members, _ := body["members"].([]any)
	result := make(map[string]uint, len(members))
	for _, raw := range members {
		member, _ := raw.(map[string]any)
		name, _ := member["name"].(string)
		id, _ := member["member_id"].(float64)
		result[name] = uint(id)
	}
	return result
}
