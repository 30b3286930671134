package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"radiography_exam/internal/repository"
	"radiography_exam/pkg/logger"
	"radiography_exam/pkg/monitoring"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 32
	onlineTTL      = 2 * time.Minute // 在线状态过期时间
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type PresenceClient struct {
	Hub    *PresenceHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// readPump 只用于感知断线与回应 pong，客户端消息被忽略
func (c *PresenceClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.ctx.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("Presence socket closed unexpectedly", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			return
		}
	}
}

func (c *PresenceClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type presenceShard struct {
	clients map[uint]map[*PresenceClient]struct{}
	mu      sync.RWMutex
}

// PresenceHub 维护用户的在线状态：同一用户的第一个连接触发 Connect，
// 最后一个连接断开触发 Disconnect。随进程启动创建，关闭时 Stop。
type PresenceHub struct {
	shards     [shardCount]*presenceShard
	register   chan *PresenceClient
	unregister chan *PresenceClient
	Redis      *redis.Client
	Users      *repository.UserRepository
	Now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPresenceHub(rdb *redis.Client, users *repository.UserRepository) *PresenceHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &PresenceHub{
		register:   make(chan *PresenceClient),
		unregister: make(chan *PresenceClient),
		Redis:      rdb,
		Users:      users,
		Now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &presenceShard{clients: make(map[uint]map[*PresenceClient]struct{})}
	}
	return h
}

func (h *PresenceHub) getShard(userID uint) *presenceShard {
	return h.shards[userID%shardCount]
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("user:online:%d", userID)
}

// Connect 标记用户在线
func (h *PresenceHub) Connect(ctx context.Context, userID uint) error {
	if err := h.Users.SetPresence(ctx, userID, true, h.Now()); err != nil {
		return err
	}
	if err := h.Redis.Set(ctx, onlineKey(userID), "true", onlineTTL).Err(); err != nil {
		return err
	}
	monitoring.OnlineUsers.Inc()
	return nil
}

// Disconnect 标记用户离线并记录 lastSeen
func (h *PresenceHub) Disconnect(ctx context.Context, userID uint) error {
	if err := h.Users.SetPresence(ctx, userID, false, h.Now()); err != nil {
		return err
	}
	if err := h.Redis.Del(ctx, onlineKey(userID)).Err(); err != nil {
		return err
	}
	monitoring.OnlineUsers.Dec()
	return nil
}

func (h *PresenceHub) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := h.Redis.Exists(ctx, onlineKey(userID)).Result()
	return n == 1, err
}

// Serve 升级为 websocket 并注册连接
func (h *PresenceHub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &PresenceClient{Hub: h, Conn: conn, Send: make(chan []byte, 8), UserID: userID}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return h.ctx.Err()
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *PresenceHub) Run() {
	defer close(h.done)

	heartbeat := time.NewTicker(time.Minute)
	defer heartbeat.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			conns, ok := s.clients[client.UserID]
			if !ok {
				conns = make(map[*PresenceClient]struct{})
				s.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			first := len(conns) == 1
			s.mu.Unlock()

			if first {
				if err := h.Connect(h.ctx, client.UserID); err != nil {
					logger.Log.Error("Failed to mark user online", zap.Error(err), zap.Uint("userId", client.UserID))
				}
			}
			h.sendTo(client, WSMessage{Type: "PRESENCE", Data: map[string]interface{}{"userId": client.UserID, "status": "online"}})

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			last := false
			if conns, ok := s.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.Send)
				}
				if len(conns) == 0 {
					delete(s.clients, client.UserID)
					last = true
				}
			}
			s.mu.Unlock()

			if last {
				if err := h.Disconnect(h.ctx, client.UserID); err != nil {
					logger.Log.Error("Failed to mark user offline", zap.Error(err), zap.Uint("userId", client.UserID))
				}
			}

		case <-heartbeat.C:
			h.refreshOnlineStatus()
		}
	}
}

func (h *PresenceHub) sendTo(c *PresenceClient, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// refreshOnlineStatus 为本实例的在线用户续期
func (h *PresenceHub) refreshOnlineStatus() {
	pipe := h.Redis.Pipeline()
	count := 0
	for _, s := range h.shards {
		s.mu.RLock()
		for userID := range s.clients {
			pipe.Expire(h.ctx, onlineKey(userID), onlineTTL)
			count++
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		if _, err := pipe.Exec(h.ctx); err != nil {
			logger.Log.Error("Redis pipeline error", zap.Error(err))
		}
	}
}

// Stop 关闭所有连接并把本实例上的用户标记为离线
func (h *PresenceHub) Stop() {
	h.cancel()
	<-h.done

	var userIDs []uint
	for _, s := range h.shards {
		s.mu.Lock()
		for userID, conns := range s.clients {
			userIDs = append(userIDs, userID)
			for c := range conns {
				close(c.Send)
			}
			delete(s.clients, userID)
		}
		s.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, userID := range userIDs {
		if err := h.Disconnect(ctx, userID); err != nil {
			logger.Log.Warn("Failed to clear presence on shutdown", zap.Error(err), zap.Uint("userId", userID))
		}
	}
	logger.Log.Info("PresenceHub stopped", zap.Int("users", len(userIDs)))
}
