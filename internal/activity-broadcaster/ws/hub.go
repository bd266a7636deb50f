package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas: gorilla/websocket aceita um único writer por vez
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por grupo
// subs: groupID -> conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	metrics  *metrics.Broadcaster

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub cria o hub com a política de origem informada
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger, m *metrics.Broadcaster) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		metrics:  m,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar.
// Um cliente pode assinar vários grupos.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	h.metrics.WSClients.Inc()
	defer func() {
		h.drop(c)
		h.metrics.WSClients.Dec()
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.GroupID == "" {
				_ = c.write(ServerMsg{Type: "error", Error: "groupId is required"})
				continue
			}
			h.subscribe(c, msg.GroupID)
			h.metrics.WSSubscription.WithLabelValues("subscribe").Inc()
			_ = c.write(ServerMsg{Type: "subscribed", GroupID: msg.GroupID})
		case "unsubscribe":
			h.unsubscribe(c, msg.GroupID)
			h.metrics.WSSubscription.WithLabelValues("unsubscribe").Inc()
			_ = c.write(ServerMsg{Type: "unsubscribed", GroupID: msg.GroupID})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		default:
			_ = c.write(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Hub) subscribe(c *client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[groupID]; !ok {
		h.subs[groupID] = make(map[*client]struct{})
	}
	h.subs[groupID][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[groupID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, groupID)
		}
	}
}

// drop remove o cliente de todas as assinaturas
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for g, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, g)
		}
	}
}

// Subscribers retorna quantos clientes assinam o grupo
func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[groupID])
}

// Broadcast envia o envelope para todos os inscritos no grupo
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[env.GroupID]))
	for c := range h.subs[env.GroupID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(env)
	if err != nil {
		h.log.Warn("ws encode failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(json.RawMessage(b)); err != nil {
			h.log.Debug("ws write failed", zap.String("group_id", env.GroupID), zap.Error(err))
			continue
		}
		h.metrics.WSDelivered.Inc()
	}
}
