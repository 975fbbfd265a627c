// Package ws 是核心的传输协作方：维护活跃连接与房间广播通道，
// 把出站事件编码后投递到单连接、房间或全体连接。
package ws

import (
	"encoding/json"
	"sync"

	"chatserver/internal/metrics"
	"chatserver/internal/protocol"

	"github.com/rs/zerolog"
)

// Hub 连接注册表加房间通道表，实现 chat.Sender。通道成员由核心层通过
// Join/Leave 驱动，与房间成员保持 1:1 镜像。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log,
	}
}

// Bind 接入一条新连接。
func (h *Hub) Bind(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WsConnections.Inc()
	h.log.Info().Str("conn", c.id).Str("addr", c.addr).Int("total", total).Msg("client connected")
}

// Unbind 摘除连接并关闭其发送通道，同时从所有房间通道退出。
func (h *Hub) Unbind(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		for name, members := range h.rooms {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, name)
			}
		}
	}
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	close(c.send)
	metrics.WsConnections.Dec()
	h.log.Info().Str("conn", connID).Int("total", total).Msg("client disconnected")
}

// Join 把连接订阅进房间通道。
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.clients[connID]
	if c == nil {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
}

// Leave 把连接退出房间通道，通道清空时回收。
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// ToConn 投递给单个连接。
func (h *Hub) ToConn(connID string, evt protocol.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("type", evt.Type).Msg("marshal event")
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c != nil {
		h.push(c, payload, evt.Type)
	}
}

// ToRoom 投递给房间通道的全部订阅者。
func (h *Hub) ToRoom(room string, evt protocol.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("type", evt.Type).Msg("marshal event")
		return
	}
	for _, c := range h.roomSnapshot(room) {
		h.push(c, payload, evt.Type)
	}
}

// ToAll 投递给所有活跃连接。
func (h *Hub) ToAll(evt protocol.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("type", evt.Type).Msg("marshal event")
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.push(c, payload, evt.Type)
	}
}

// Online 当前活跃连接数，供只读接口复用。
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) roomSnapshot(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// push 非阻塞投递；慢消费者的缓冲满时直接丢弃这一条，投递语义就是
// 至多一次、尽力而为。整个发送期间持有读锁，保证 Unbind 不会在
// 发送中途关闭通道。
func (h *Hub) push(c *Client, payload []byte, evtType string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.id] != c {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.log.Warn().Str("conn", c.id).Str("type", evtType).Msg("send buffer full, event dropped")
	}
}
