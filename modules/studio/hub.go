package studio

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"influencia-studio-server/modules/common/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// 메시지 타입
const (
	MessageSnapshot        = "session_snapshot"
	MessageRequestSnapshot = "request_snapshot"
	MessageSessionClosed   = "session_closed"
)

// Message - websocket 으로 주고받는 메시지
type Message struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	Session   *Snapshot `json:"session,omitempty"`
}

// Client - 세션을 구독 중인 websocket 연결
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub - 세션 하나의 구독자 목록
type Hub struct {
	sessionID string
	snapshot  func() Snapshot

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(sessionID string, snapshot func() Snapshot, l zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		sessionID: sessionID,
		snapshot:  snapshot,
		clients:   make(map[string]*Client),
		log:       l.With().Str("session", sessionID).Logger(),
		metrics:   m,
	}
}

// Serve - 연결 등록 후 현재 스냅샷 전송, 읽기/쓰기 펌프 시작
func (h *Hub) Serve(clientID string, conn *websocket.Conn) {
	client := &Client{
		id:   clientID,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
		_ = conn.Close()
		return
	}
	if previous, exists := h.clients[clientID]; exists {
		close(previous.send)
		h.metrics.ClientDisconnected()
	}
	// 첫 메시지: 등록과 같은 락 안에서 캡처한 현재 스냅샷
	if payload, err := h.snapshotMessage(); err == nil {
		client.send <- payload
	}
	h.clients[clientID] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.ClientConnected()
	h.log.Info().Msgf("👤 Client %s joined (Clients: %d)", clientID, count)

	go client.writePump(h)
	go client.readPump(h)
}

// Broadcast - 모든 구독자에게 전송, 버퍼가 찬 클라이언트는 끊음
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, client := range h.clients {
		select {
		case client.send <- payload:
			delivered++
		default:
			close(client.send)
			delete(h.clients, id)
			h.metrics.ClientDisconnected()
			h.log.Warn().Msgf("🐢 Dropped slow client %s", id)
		}
	}
	return delivered
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close - 세션 정리 시 모든 연결 종료
func (h *Hub) Close() {
	payload, _ := json.Marshal(Message{Type: MessageSessionClosed, SessionID: h.sessionID})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
		}
		close(client.send)
		delete(h.clients, id)
		h.metrics.ClientDisconnected()
		h.log.Info().Msgf("🔌 Disconnecting client %s", id)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, exists := h.clients[client.id]; exists && current == client {
		close(client.send)
		delete(h.clients, client.id)
		h.metrics.ClientDisconnected()
		h.log.Info().Msgf("👋 Client %s left (Remaining: %d)", client.id, len(h.clients))
	}
}

func (h *Hub) snapshotMessage() ([]byte, error) {
	snap := h.snapshot()
	return json.Marshal(Message{Type: MessageSnapshot, SessionID: h.sessionID, Session: &snap})
}

// readPump - 클라이언트 메시지 읽기 (스냅샷 재요청만 처리)
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message Message
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		switch message.Type {
		case MessageRequestSnapshot:
			payload, err := h.snapshotMessage()
			if err != nil {
				h.log.Error().Err(err).Msg("Error marshaling snapshot")
				continue
			}
			h.sendTo(c, payload)
		default:
			h.log.Debug().Msgf("Ignoring message type '%s' from %s", message.Type, c.id)
		}
	}
}

func (h *Hub) sendTo(c *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, exists := h.clients[c.id]; exists && current == c {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// writePump - 클라이언트로 메시지 쓰기
func (c *Client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
				h.log.Warn().Err(err).Msg("WebSocket write error")
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
