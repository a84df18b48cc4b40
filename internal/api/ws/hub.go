package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"limitedtracker/internal/logger"
	"limitedtracker/internal/snapshot"
)

const writeWait = 10 * time.Second

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type SnapshotUpdatedData struct {
	RobloxUserID int64           `json:"robloxUserId"`
	SnapshotID   uuid.UUID       `json:"snapshotId"`
	Action       snapshot.Action `json:"action"`
	Complete     bool            `json:"complete"`
	Added        int             `json:"added"`
	Removed      int             `json:"removed"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Hub fans snapshot events out to every socket watching a player. One player
// page may be open in many browsers, so each player maps to a set of
// connections.
type Hub struct {
	connections map[int64]map[*websocket.Conn]struct{}
	mu          sync.RWMutex
	writeMu     sync.Mutex
	log         *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = logger.L()
	}
	return &Hub{
		connections: make(map[int64]map[*websocket.Conn]struct{}),
		log:         log.With(zap.String("component", "ws_hub")),
	}
}

func (h *Hub) Register(robloxUserID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[robloxUserID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.connections[robloxUserID] = conns
	}
	conns[conn] = struct{}{}
	h.log.Debug("watcher connected",
		zap.Int64("roblox_user_id", robloxUserID),
		zap.Int("total", h.countLocked()),
	)
}

func (h *Hub) Unregister(robloxUserID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[robloxUserID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; !exists {
		return
	}
	conn.Close()
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.connections, robloxUserID)
	}
	h.log.Debug("watcher disconnected",
		zap.Int64("roblox_user_id", robloxUserID),
		zap.Int("total", h.countLocked()),
	)
}

// Broadcast writes msg to every watcher of the player. Sockets that fail the
// write are dropped.
func (h *Hub) Broadcast(robloxUserID int64, msg Message) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections[robloxUserID]))
	for conn := range h.connections[robloxUserID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var failed []*websocket.Conn
	h.writeMu.Lock()
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = append(failed, conn)
		}
	}
	h.writeMu.Unlock()

	for _, conn := range failed {
		h.Unregister(robloxUserID, conn)
	}
	return nil
}

// SnapshotUpdated tells watchers that a background rescan wrote a snapshot.
func (h *Hub) SnapshotUpdated(robloxUserID int64, res *snapshot.ScanResult) error {
	if res == nil || res.Snapshot == nil {
		return nil
	}

	updatedAt := res.Snapshot.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = res.Snapshot.CreatedAt
	}

	return h.Broadcast(robloxUserID, Message{
		Type: "snapshot_updated",
		Data: SnapshotUpdatedData{
			RobloxUserID: robloxUserID,
			SnapshotID:   res.Snapshot.ID,
			Action:       res.Action,
			Complete:     res.Complete,
			Added:        len(res.NewUAIDs),
			Removed:      len(res.RemovedUAIDs),
			UpdatedAt:    updatedAt,
		},
	})
}

func (h *Hub) IsWatched(robloxUserID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[robloxUserID]) > 0
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, conns := range h.connections {
		n += len(conns)
	}
	return n
}

func (h *Hub) WatchedPlayers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	return ids
}
