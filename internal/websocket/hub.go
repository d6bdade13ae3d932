package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mailveil/backend/internal/auth/jwt"
	"mailveil/backend/internal/domain"
)

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeNewMail MessageType = "new_mail"
	MessageTypePing    MessageType = "ping"
	MessageTypePong    MessageType = "pong"
	MessageTypeError   MessageType = "error"
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 一个已认证用户的 WebSocket 连接。
// 同一用户可以有多个连接（多设备、多标签页）。
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *zap.Logger
}

// Hub 管理全部 WebSocket 连接并向用户推送新邮件通知
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	byUser     map[string]map[string]*Client // userID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
	upgrader   websocket.Upgrader
	jwtManager *jwt.Manager
}

// NewHub 创建 WebSocket Hub
func NewHub(jwtManager *jwt.Manager, allowedOrigins []string, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		byUser:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
		upgrader:   upgraderFactory(allowedOrigins),
		jwtManager: jwtManager,
	}
}

// Run 运行连接管理循环，应在独立 goroutine 中调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.byUser[client.UserID] == nil {
				h.byUser[client.UserID] = make(map[string]*Client)
			}
			h.byUser[client.UserID][client.ID] = client
			h.mu.Unlock()
			h.log.Debug("websocket client connected",
				zap.String("client_id", client.ID),
				zap.String("user_id", client.UserID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				if peers, ok := h.byUser[client.UserID]; ok {
					delete(peers, client.ID)
					if len(peers) == 0 {
						delete(h.byUser, client.UserID)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[string]*Client)
			h.byUser = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown 停止 Hub 并断开全部连接
func (h *Hub) Shutdown() {
	close(h.done)
}

// NotifyNewMail 向给定用户的全部在线连接推送新邮件通知。
// 实现 service.Notifier。
func (h *Hub) NotifyNewMail(userIDs []string, entry *domain.MailboxEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		h.log.Warn("failed to encode notification", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Message{
		Type:      MessageTypeNewMail,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range userIDs {
		for _, client := range h.byUser[userID] {
			select {
			case client.send <- payload:
			default:
				// 发送缓冲已满，丢弃这条通知而不是阻塞 Hub
			}
		}
	}
}

// Handle 返回处理 WebSocket 升级请求的 gin 处理函数。
// 连接通过 query 参数 token 携带 JWT 认证。
func (h *Hub) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := h.jwtManager.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.NewString(),
			UserID: claims.UserID,
			conn:   conn,
			send:   make(chan []byte, 64),
			hub:    h,
			log:    h.log,
		}
		h.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息，仅响应 ping
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			pong, _ := json.Marshal(Message{Type: MessageTypePong, Timestamp: time.Now().UTC()})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// writePump 向客户端写消息并维持心跳
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
