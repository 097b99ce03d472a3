package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit       = "init"       // 连接后的初始数据（充电会话状态）
	MsgTypeSubscribed = "subscribed" // 订阅确认
	MsgTypeError      = "error"      // 错误消息
)

// 客户端动作
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1024
)

// Message WebSocket 消息结构
type Message struct {
	Type  string      `json:"type"`
	CarID int64       `json:"car_id,omitempty"`
	Data  interface{} `json:"data"`
}

// Request 客户端请求，例如 {"action":"subscribe","car_id":1}
type Request struct {
	Action string `json:"action"`
	CarID  int64  `json:"car_id"`
}

// InitData 初始化数据
type InitData struct {
	States interface{} `json:"states"`
}

type outbound struct {
	carID int64 // 0 表示所有客户端
	data  []byte
}

type subscription struct {
	client *Client
	carID  int64
	on     bool
}

// Client WebSocket 客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	cars map[int64]bool // 仅由 Hub.Run 访问
}

// Hub WebSocket 连接管理中心，按车辆订阅分发消息
type Hub struct {
	logger      *zap.Logger
	clients     map[*Client]bool
	broadcast   chan outbound
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	mu          sync.RWMutex
	subscribers map[int64]int
	done        chan struct{}

	getInitData func() *InitData
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		clients:     make(map[*Client]bool),
		broadcast:   make(chan outbound, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		subscribers: make(map[int64]int),
		done:        make(chan struct{}),
	}
}

// SetInitDataProvider 设置初始数据提供者
func (h *Hub) SetInitDataProvider(provider func() *InitData) {
	h.getInitData = provider
}

// Run 运行 Hub，ctx 取消后关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected", zap.Int("total_clients", total))
			h.sendInitData(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", zap.Int("total_clients", total))

		case sub := <-h.subscribe:
			h.mu.Lock()
			if h.clients[sub.client] {
				h.setSubscription(sub)
			}
			h.mu.Unlock()
			if sub.on {
				h.reply(sub.client, Message{Type: MsgTypeSubscribed, CarID: sub.carID})
			}

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if msg.carID != 0 && !client.cars[msg.carID] {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// 慢消费者，关闭连接
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// setSubscription 调用方持有 h.mu
func (h *Hub) setSubscription(sub subscription) {
	has := sub.client.cars[sub.carID]
	switch {
	case sub.on && !has:
		sub.client.cars[sub.carID] = true
		h.subscribers[sub.carID]++
	case !sub.on && has:
		delete(sub.client.cars, sub.carID)
		h.release(sub.carID)
	}
}

// drop 调用方持有 h.mu
func (h *Hub) drop(client *Client) {
	for carID := range client.cars {
		h.release(carID)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) release(carID int64) {
	if h.subscribers[carID] <= 1 {
		delete(h.subscribers, carID)
		return
	}
	h.subscribers[carID]--
}

// sendInitData 发送初始数据给新连接的客户端
func (h *Hub) sendInitData(client *Client) {
	if h.getInitData == nil {
		return
	}
	initData := h.getInitData()
	if initData == nil {
		h.logger.Warn("Init data provider returned nil")
		return
	}
	h.reply(client, Message{Type: MsgTypeInit, Data: initData})
}

func (h *Hub) reply(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("Failed to send message, client buffer full", zap.String("type", msg.Type))
	}
}

// BroadcastMessage 广播结构化消息给所有客户端
func (h *Hub) BroadcastMessage(msgType string, data interface{}) {
	h.BroadcastToCar(0, msgType, data)
}

// BroadcastToCar 推送给订阅了该车辆的客户端，carID 为 0 时推送给所有客户端
func (h *Hub) BroadcastToCar(carID int64, msgType string, data interface{}) {
	jsonData, err := json.Marshal(Message{Type: msgType, CarID: carID, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- outbound{carID: carID, data: jsonData}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message", zap.Int64("car_id", carID), zap.String("type", msgType))
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount 订阅了该车辆的客户端数量
func (h *Hub) SubscriberCount(carID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscribers[carID]
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		cars: make(map[int64]bool),
	}
}

// Register 注册客户端
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		close(c.send)
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

func (c *Client) requestSubscription(carID int64, on bool) {
	select {
	case c.hub.subscribe <- subscription{client: c, carID: carID, on: on}:
	case <-c.hub.done:
	}
}

// ReadPump 读取订阅请求
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(payload, &req); err != nil || req.CarID <= 0 {
			c.hub.reply(c, Message{Type: MsgTypeError, Data: "expected {\"action\":\"subscribe\",\"car_id\":<id>}"})
			continue
		}

		switch req.Action {
		case ActionSubscribe:
			c.requestSubscription(req.CarID, true)
		case ActionUnsubscribe:
			c.requestSubscription(req.CarID, false)
		default:
			c.hub.reply(c, Message{Type: MsgTypeError, Data: "unknown action: " + req.Action})
		}
	}
}

// WritePump 发送消息并定期 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
