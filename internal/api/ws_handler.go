package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"resumify/internal/api/middleware"
	"resumify/internal/worker"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 2 * wsPingInterval
	wsWriteWait    = 5 * time.Second
)

// WsHandler 把导出进度从 Redis 频道转发到浏览器。
// 鉴权沿用会话 Cookie，升级前已由 SessionResolver 解析出当前用户。
type WsHandler struct {
	redisClient    redis.UniversalClient
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只接受同源连接。
func NewWsHandler(redisClient redis.UniversalClient, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	if len(h.allowedOrigins) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// HandleConnection 升级连接后订阅当前用户的通知频道，直到任一方断开。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.redisClient == nil {
		jsonError(c, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	s := &wsSession{
		conn:    conn,
		channel: worker.NotifyChannel(user.ID),
		cancel:  cancel,
		log: h.logger.With(
			slog.String("client_ip", c.ClientIP()),
			slog.Uint64("user_id", uint64(user.ID)),
		),
	}
	defer conn.Close()
	defer cancel()

	go s.drainReads()
	err = s.forward(ctx, h.redisClient.Subscribe(ctx, s.channel))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	s.log.Info("websocket connection closed")
}

// wsSession 是单个浏览器连接的转发状态。
type wsSession struct {
	conn    *websocket.Conn
	channel string
	cancel  context.CancelFunc
	log     *slog.Logger
}

// drainReads 丢弃客户端消息，只用于维持 pong 截止时间并发现断开。
func (s *wsSession) drainReads() {
	defer s.cancel()
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// forward 把频道中的导出消息写给浏览器，并定时发送 ping。
func (s *wsSession) forward(ctx context.Context, pubsub *redis.PubSub) error {
	defer pubsub.Close()
	s.log.Info("subscribed to export notifications", slog.String("channel", s.channel))

	messages := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			var note worker.ExportNotifyMessage
			if err := json.Unmarshal([]byte(msg.Payload), &note); err != nil {
				s.log.Warn("drop malformed export notification", slog.Any("error", err))
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(note); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
			s.log.Info("export notification delivered",
				slog.Uint64("resume_id", uint64(note.ResumeID)),
				slog.String("status", note.Status),
			)
		case <-ticker.C:
			if err := s.control(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func (s *wsSession) control(messageType int, data []byte) error {
	return s.conn.WriteControl(messageType, data, time.Now().Add(wsWriteWait))
}
