package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/AwesomeSam9523/Spades/internal/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsHub fans room snapshots out to subscribers and keeps the
// per-room online-presence refcounts. The core never sees presence;
// the hub folds it into the payload it delivers.
type wsHub struct {
	mu       sync.Mutex
	rooms    map[uint]map[string]*wsClient
	presence map[uint]map[string]int
}

type wsClient struct {
	id     string
	userID string
	conn   *websocket.Conn
}

type wsEnvelope struct {
	Type   string         `json:"type"`
	Room   *game.Snapshot `json:"room"`
	Online []string       `json:"online"`
}

func newWSHub() *wsHub {
	return &wsHub{
		rooms:    make(map[uint]map[string]*wsClient),
		presence: make(map[uint]map[string]int),
	}
}

func (h *wsHub) Add(roomID uint, userID string, conn *websocket.Conn) *wsClient {
	client := &wsClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[roomID]
	if group == nil {
		group = make(map[string]*wsClient)
		h.rooms[roomID] = group
	}
	group[client.id] = client
	counts := h.presence[roomID]
	if counts == nil {
		counts = make(map[string]int)
		h.presence[roomID] = counts
	}
	counts[userID]++
	return client
}

func (h *wsHub) Remove(roomID uint, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[roomID]
	if group == nil {
		return
	}
	if _, ok := group[client.id]; !ok {
		return
	}
	delete(group, client.id)
	_ = client.conn.Close()
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
	counts := h.presence[roomID]
	if counts != nil {
		counts[client.userID]--
		if counts[client.userID] <= 0 {
			delete(counts, client.userID)
		}
		if len(counts) == 0 {
			delete(h.presence, roomID)
		}
	}
}

// Publish implements game.Broadcaster. Write failures drop the
// subscriber; they never surface to the mutation that triggered the
// broadcast.
func (h *wsHub) Publish(roomID uint, snap *game.Snapshot) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.rooms[roomID]))
	for _, client := range h.rooms[roomID] {
		clients = append(clients, client)
	}
	online := h.onlineLocked(roomID)
	h.mu.Unlock()

	data, err := json.Marshal(wsEnvelope{
		Type:   "room",
		Room:   snap,
		Online: online,
	})
	if err != nil {
		log.Printf("snapshot marshal failed room_id=%d error=%v", roomID, err)
		return
	}
	for _, client := range clients {
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(roomID, client)
		}
	}
}

func (h *wsHub) Send(roomID uint, client *wsClient, snap *game.Snapshot) {
	h.mu.Lock()
	online := h.onlineLocked(roomID)
	h.mu.Unlock()
	data, err := json.Marshal(wsEnvelope{
		Type:   "room",
		Room:   snap,
		Online: online,
	})
	if err != nil {
		return
	}
	_ = client.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *wsHub) onlineLocked(roomID uint) []string {
	online := make([]string, 0, len(h.presence[roomID]))
	for userID := range h.presence[roomID] {
		online = append(online, userID)
	}
	return online
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	// Browsers cannot set headers on a websocket upgrade, so the user
	// id also comes in as a query parameter.
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	snap, err := s.svc.Snapshot(r.Context(), id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected room_id=%d user=%s remote=%s", id, userID, r.RemoteAddr)
	client := s.hub.Add(id, userID, conn)
	s.hub.Send(id, client, snap)
	go s.readWS(id, client)
}

func (s *Server) readWS(roomID uint, client *wsClient) {
	defer func() {
		s.hub.Remove(roomID, client)
		log.Printf("ws disconnected room_id=%d user=%s", roomID, client.userID)
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
