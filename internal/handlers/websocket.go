package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/middleware"
	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var _ services.Broadcaster = (*WebSocketHub)(nil)

// WebSocketHub fans flow events out to connected admin dashboards.
type WebSocketHub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	log        logging.Logger
}

type Client struct {
	SessionID string
	Conn      *websocket.Conn
	send      chan *Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewWebSocketHub(log logging.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (hub *WebSocketHub) Run(ctx context.Context) {
	defer close(hub.done)

	for {
		select {
		case <-ctx.Done():
			for client := range hub.clients {
				close(client.send)
				delete(hub.clients, client)
			}
			return

		case client := <-hub.register:
			hub.clients[client] = struct{}{}
			hub.log.Info(ctx, "live feed client registered", "session_id", client.SessionID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
				hub.log.Info(ctx, "live feed client unregistered", "session_id", client.SessionID)
			}

		case message := <-hub.broadcast:
			for client := range hub.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stall the feed.
					delete(hub.clients, client)
					close(client.send)
				}
			}
		}
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		hub.log.Warn(context.Background(), "live feed buffer full, dropping event", "type", msg.Type)
	}
}

func (hub *WebSocketHub) BroadcastPrediction(p *models.Prediction) {
	hub.publish(&Message{Type: "PREDICTION", Data: p})
}

func (hub *WebSocketHub) BroadcastActivation(a *models.Activation, result models.ActivationResult) {
	hub.publish(&Message{
		Type: "ACTIVATION",
		Data: gin.H{
			"user_id":      a.UserID,
			"key_name":     a.KeyName,
			"activated_at": a.ActivatedAt,
			"result":       result.String(),
		},
	})
}

// HandleWebSocket upgrades an authenticated admin request to the live feed.
func (hub *WebSocketHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn(c.Request.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	client := &Client{
		SessionID: c.GetString(middleware.ContextSessionID),
		Conn:      conn,
		send:      make(chan *Message, sendBufSize),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()

	defer func() {
		select {
		case hub.unregister <- client:
		case <-hub.done:
		}
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.log.Warn(c.Request.Context(), "websocket error", "error", err)
			}
			return
		}

		if msg.Type == "PING" {
			hub.sendTo(client, &Message{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}})
		}
	}
}

func (hub *WebSocketHub) sendTo(client *Client, msg *Message) {
	defer func() {
		// send may already be closed by Run.
		_ = recover()
	}()
	select {
	case client.send <- msg:
	default:
	}
}

// writePump is the only writer on the connection.
func (client *Client) writePump() {
	for msg := range client.send {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(msg); err != nil {
			client.Conn.Close()
			return
		}
	}
	client.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
