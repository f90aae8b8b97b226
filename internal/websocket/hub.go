package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/metrics"
	"shyra-hub-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "shyra:realtime"

// Hub tracks connected clients and the rooms they joined. When a Redis client
// is configured, room emits are also relayed to the other hub instances.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	// Redis connection for cross-instance communication
	rdb        *redis.Client
	instanceId string

	logger logger.ILogger
}

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

// Run relays room emits from other instances until ctx is done. Without Redis
// it returns immediately.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}

	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceId {
				continue
			}
			h.deliver(payload.Room, payload.Message)
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.Id] = c
	h.mu.Unlock()
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": c.Id, "entity_id": c.Identity.Id})
}

// Unregister removes c from every room and closes its outbound queue. Safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.Id)
	for room, members := range h.rooms {
		delete(members, c.Id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.closeSend()
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.Id] = c
}

// RoomSize counts local members of room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendTo delivers one frame to a single client.
func (h *Hub) SendTo(c *Client, msgType string, data interface{}) {
	raw, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"type": msgType, "error": err})
		return
	}
	if !c.enqueue(raw) {
		h.logger.Warn("Hub", "Frame dropped", map[string]interface{}{"client_id": c.Id, "type": msgType})
		return
	}
	metrics.RealtimeMessages.WithLabelValues("out", msgType).Inc()
}

// EmitToRoom delivers one frame to every member of room on every instance.
func (h *Hub) EmitToRoom(room string, msgType string, data interface{}) {
	raw, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"type": msgType, "error": err})
		return
	}
	metrics.RealtimeMessages.WithLabelValues("out", msgType).Inc()

	h.deliver(room, raw)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.instanceId, Room: room, Message: raw})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"room": room, "error": err.Error()})
		}
	}
}

func (h *Hub) deliver(room string, raw []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(raw) {
			h.logger.Warn("Hub", "Client send buffer full, dropping frame", map[string]interface{}{"client_id": c.Id, "room": room})
		}
	}
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(dto.OutboundMessage{Type: msgType, Data: data})
}
