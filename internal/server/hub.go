package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	clientSendBuf  = 64
	maxMessageSize = 1024
)

// AlertEvent is one message on the alert feed.
type AlertEvent struct {
	Type      string      `json:"type"` // "assessment" or "pattern"
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Hub fans scoring alerts out to connected WebSocket clients. It also
// implements risk.AlertSink so it can sit next to the Kafka publisher.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an alert hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]bool),
	}
}

// PublishAssessment broadcasts a high-severity assessment to the feed.
func (h *Hub) PublishAssessment(_ context.Context, txn *models.Transaction, assessment *models.RiskAssessment) error {
	h.broadcast(AlertEvent{
		Type:      "assessment",
		Timestamp: time.Now().UTC(),
		Payload: gin.H{
			"transaction_id":     assessment.TransactionID,
			"user_id":            txn.UserID,
			"risk_score":         assessment.RiskScore,
			"risk_level":         assessment.RiskLevel,
			"recommended_action": assessment.RecommendedAction,
		},
	})
	return nil
}

// PublishPattern broadcasts a detected pattern to the feed.
func (h *Hub) PublishPattern(_ context.Context, pattern *models.FraudPattern) error {
	h.broadcast(AlertEvent{
		Type:      "pattern",
		Timestamp: time.Now().UTC(),
		Payload:   pattern,
	})
	return nil
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(event AlertEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("alert event encode failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the event rather than block scoring.
		}
	}
}

// handleAlertFeed upgrades the connection and attaches it to the hub.
func (s *Server) handleAlertFeed(c *gin.Context) {
	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("alert feed upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, clientSendBuf)}
	s.hub.add(client)

	go s.hub.writePump(client)
	go s.hub.readPump(client)
}

func (h *Hub) add(client *hubClient) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

func (h *Hub) remove(client *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// readPump drains and discards client frames so pings and close frames are
// processed.
func (h *Hub) readPump(client *hubClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
