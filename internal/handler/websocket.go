package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"streetart_marketplace/internal/config"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/middleware"
	"streetart_marketplace/internal/realtime"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/errors"
	"streetart_marketplace/pkg/logger"
)

const maxFrameSize = 16 << 10

// Frame - конверт каждого сообщения вебсокета в обе стороны.
type Frame struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	FrameConversations = "conversations"
	FrameMessages      = "messages"
	FrameSend          = "send"
	FrameSent          = "sent"
	FrameError         = "error"
)

type WebSocketHandler struct {
	conversationService service.ConversationService
	rateLimitService    service.RateLimitService
	feed                repository.ChangeFeed
	upgrader            websocket.Upgrader
	pingInterval        time.Duration
	writeWait           time.Duration
	log                 logger.Logger
}

func NewWebSocketHandler(conversationService service.ConversationService, rateLimitService service.RateLimitService, feed repository.ChangeFeed, allowedOrigins []string, cfg config.RealtimeConfig, log logger.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		conversationService: conversationService,
		rateLimitService:    rateLimitService,
		feed:                feed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		pingInterval: cfg.PingInterval,
		writeWait:    cfg.WriteWait,
		log:          log,
	}
	if h.pingInterval <= 0 {
		h.pingInterval = 30 * time.Second
	}
	if h.writeWait <= 0 {
		h.writeWait = 10 * time.Second
	}
	return h
}

// Conversations транслирует список диалогов пользователя и присылает новый список
// при каждом изменении одного из его диалогов.
func (h *WebSocketHandler) Conversations(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	list, err := realtime.NewConversationList(c.Request.Context(), h.feed, a, func(ctx context.Context) ([]*domain.Conversation, error) {
		return h.conversationService.ListConversations(ctx, a)
	}, h.log)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer list.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	h.log.Debug("Conversation stream opened", "user_id", a.ID)
	s := h.newSession(conn)
	s.queue(Frame{Type: FrameConversations, Data: list.Snapshot()})
	go s.readLoop(func(Frame) {
		s.queue(Frame{Type: FrameError, Error: "this stream is read-only"})
	})
	go func() {
		for {
			select {
			case snapshot := <-list.Updates():
				s.queue(Frame{Type: FrameConversations, Data: snapshot})
			case <-s.done:
				return
			}
		}
	}()

	s.writeLoop()
	h.log.Debug("Conversation stream closed", "user_id", a.ID)
}

// Messages транслирует переписку одного диалога. Клиент отправляет кадры
// {"type":"send","content":"..."}; сообщение показывается как ожидающее,
// пока хранилище его не подтвердит.
func (h *WebSocketHandler) Messages(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	feed, err := realtime.NewMessageFeed(c.Request.Context(), h.feed, a, conversationID,
		func(ctx context.Context) ([]*domain.Message, error) {
			return h.conversationService.ListMessages(ctx, a, conversationID)
		},
		func(ctx context.Context, content, clientID string) (*domain.Message, error) {
			return h.conversationService.SendMessage(ctx, a, conversationID, content, &clientID)
		},
		h.log,
	)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer feed.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.log.Debug("Message stream opened", "user_id", a.ID, "conversation_id", conversationID)
	s := h.newSession(conn)
	s.queue(Frame{Type: FrameMessages, Data: feed.Messages()})
	go s.readLoop(func(f Frame) {
		if f.Type != FrameSend {
			s.queue(Frame{Type: FrameError, Error: "unknown frame type"})
			return
		}
		if !h.allowSend(ctx, a) {
			s.queue(Frame{Type: FrameError, Error: "Rate limit exceeded"})
			return
		}
		message, err := feed.Send(ctx, f.Content)
		if err != nil {
			s.queue(Frame{Type: FrameError, Error: errors.PublicMessage(err)})
			return
		}
		if message != nil {
			s.queue(Frame{Type: FrameSent, Data: message})
		}
	})
	go func() {
		for {
			select {
			case messages := <-feed.Updates():
				s.queue(Frame{Type: FrameMessages, Data: messages})
			case <-s.done:
				return
			}
		}
	}()

	s.writeLoop()
	h.log.Debug("Message stream closed", "user_id", a.ID, "conversation_id", conversationID)
}

// allowSend применяет тот же лимит "messages", что и HTTP-отправка.
func (h *WebSocketHandler) allowSend(ctx context.Context, a domain.Actor) bool {
	if h.rateLimitService == nil {
		return true
	}
	key := "messages:user:" + a.ID.String()
	allowed, _, err := h.rateLimitService.Allow(ctx, key)
	if err != nil {
		h.log.Error("Rate limit check failed", "error", err, "key", key)
		return true
	}
	return allowed
}

// session владеет одним вебсокетом. Писать в соединение может только writeLoop.
type session struct {
	conn         *websocket.Conn
	outbox       chan Frame
	closed       chan struct{} // читатель остановлен
	done         chan struct{} // писатель остановлен
	pingInterval time.Duration
	writeWait    time.Duration
	log          logger.Logger
}

func (h *WebSocketHandler) newSession(conn *websocket.Conn) *session {
	return &session{
		conn:         conn,
		outbox:       make(chan Frame, 16),
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
		pingInterval: h.pingInterval,
		writeWait:    h.writeWait,
		log:          h.log,
	}
}

func (s *session) queue(f Frame) {
	select {
	case s.outbox <- f:
	case <-s.done:
	}
}

func (s *session) readLoop(handle func(Frame)) {
	defer close(s.closed)

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Websocket read failed", "error", err)
			}
			return
		}
		handle(f)
	}
}

func (s *session) writeLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.log.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				return
			}
		case <-s.closed:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.writeWait))
			return
		}
	}
}
