// Package notifier 把下单事件推送到买家的 websocket 连接上，用于前端弹出下单成功提示
package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/metrics"
	"glimmer/internal/service/checkout/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 前端与网关不同源，允许跨域
		return true
	},
}

// TokenParser 从 token 中解析用户ID
type TokenParser interface {
	ParseToken(raw string) (string, error)
}

// Hub 维护所有活跃的连接，同一用户可以有多个标签页
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Connections 当前用户在本节点上的连接数
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push 非阻塞地发给用户的所有连接，返回送达的连接数。发送缓冲已满的连接被断开。
func (h *Hub) Push(userID string, msg []byte) int {
	h.mu.RLock()
	var slow []*Client
	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
	return delivered
}

// Notification 推送给前端的消息体
type Notification struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Message     string          `json:"message"`
}

// HandleOrderPlaced 作为 Kafka 消费者的处理函数
func (h *Hub) HandleOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	payload, err := json.Marshal(Notification{
		Type:        "order_placed",
		OrderID:     evt.OrderID,
		TotalAmount: evt.TotalAmount,
		Message:     "Your order has been placed.",
	})
	if err != nil {
		return err
	}
	n := h.Push(evt.UserID, payload)
	if n == 0 {
		metrics.NotificationsPushed.WithLabelValues("offline").Inc()
		logger.Ctx(ctx).Debug().Str("user_id", evt.UserID).Str("order_id", evt.OrderID).Msg("buyer not connected to this node")
		return nil
	}
	metrics.NotificationsPushed.WithLabelValues("delivered").Add(float64(n))
	logger.Ctx(ctx).Info().Str("user_id", evt.UserID).Str("order_id", evt.OrderID).Int("connections", n).Msg("order notification pushed")
	return nil
}

// ServeWS token 通过 ?token= 传入，浏览器的 websocket 无法设置 Authorization 头
func (h *Hub) ServeWS(auth TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.ParseToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), userID: userID}
		h.register(c)
		logger.Ctx(r.Context()).Info().Str("user_id", userID).Msg("client connected")

		go c.writePump()
		go c.readPump()
	}
}

// writePump 负责将 send channel 中的消息写入 websocket，并定时发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump 只处理心跳与关闭，客户端不发送业务消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
