package ws

import (
	"net/http"
	"time"

	"chatserver/internal/chat"
	"chatserver/internal/config"
	"chatserver/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Client 一条 WebSocket 连接。id 是传输层分配的连接标识，核心层以它为
// 用户主键；连接关闭后该标识随之失效。
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	svc  *chat.Service
	addr string
	log  zerolog.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 升级 WebSocket 连接并启动读写泵。
func Serve(hub *Hub, svc *chat.Service, cfg config.Config, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("addr", c.Request.RemoteAddr).Msg("ws upgrade failed")
			return
		}
		conn.SetReadLimit(cfg.WsReadLimit)

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, cfg.WsSendBuffer),
			hub:  hub,
			svc:  svc,
			addr: c.Request.RemoteAddr,
			log:  log,
		}
		hub.Bind(client)

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		// 断开视同一次离开事件：先走核心的清理迁移（广播仍需送达
		// 其他成员），再摘除连接本身。
		c.svc.Disconnect(c.id)
		c.hub.Unbind(c.id)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Str("conn", c.id).Msg("ws read error")
			}
			break
		}

		in, err := protocol.Decode(data)
		if err != nil {
			// 非法载荷在边界丢弃，不进核心。
			c.log.Debug().Err(err).Str("conn", c.id).Msg("dropping malformed event")
			continue
		}
		c.svc.Dispatch(c.id, in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
