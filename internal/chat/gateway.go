package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// envelope frames every event on the wire.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Gateway upgrades HTTP requests to WebSocket connections and runs one
// read loop per client. Each connection gets its own session; at most
// one chat turn is in flight per connection.
type Gateway struct {
	coordinator *Coordinator
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewGateway creates the WebSocket gateway.
func NewGateway(coordinator *Coordinator, logger zerolog.Logger) *Gateway {
	return &Gateway{
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The widget is served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// ServeHTTP upgrades the request and serves chat events until the
// client disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &clientConn{
		ws:      ws,
		session: NewSession(),
		gateway: g,
		logger:  g.logger.With().Str("remote", ws.RemoteAddr().String()).Logger(),
	}
	client.run(r.Context())
}

// clientConn is one connected chat client. The read loop is the only
// reader; writeJSON serializes all writers.
type clientConn struct {
	ws      *websocket.Conn
	session *Session
	gateway *Gateway
	logger  zerolog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *clientConn) run(ctx context.Context) {
	defer func() {
		c.stopTurn()
		c.ws.Close()
		c.logger.Debug().Msg("connection closed")
	}()

	c.logger.Debug().Msg("client connected")

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Warn().Err(err).Msg("malformed event")
			continue
		}

		switch env.Event {
		case EventSend:
			var req SendRequest
			if err := json.Unmarshal(env.Data, &req); err != nil || req.Message == "" {
				c.emitError(ErrorEvent{ConversationID: "default", Error: "Invalid chat message."})
				continue
			}
			c.startTurn(ctx, req)
		case EventStop:
			c.stopTurn()
		case EventPing:
			c.writeJSON(EventPong, nil)
		default:
			c.logger.Debug().Str("event", env.Event).Msg("ignoring unknown event")
		}
	}
}

// startTurn launches the coordinator for one message. A second send
// while a turn is in flight is rejected with an error event instead of
// interleaving two streams on the same channel.
func (c *clientConn) startTurn(ctx context.Context, req SendRequest) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = "default"
		}
		c.emitError(ErrorEvent{
			ConversationID: conversationID,
			Error:          "A response is still being generated. Please wait for it to finish.",
		})
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			close(done)
			c.mu.Lock()
			c.cancel = nil
			c.done = nil
			c.mu.Unlock()
		}()
		c.gateway.coordinator.HandleTurn(turnCtx, c.session, req, c)
	}()
}

// stopTurn cancels the in-flight turn, if any, and waits for the
// coordinator to finish so relay output after cancellation is dropped
// rather than racing the next turn.
func (c *clientConn) stopTurn() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Token implements Emitter.
func (c *clientConn) Token(ev TokenEvent) { c.writeJSON(EventToken, ev) }

// Done implements Emitter.
func (c *clientConn) Done(ev DoneEvent) { c.writeJSON(EventDone, ev) }

// Error implements Emitter.
func (c *clientConn) Error(ev ErrorEvent) { c.emitError(ev) }

func (c *clientConn) emitError(ev ErrorEvent) { c.writeJSON(EventError, ev) }

func (c *clientConn) writeJSON(event string, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			c.logger.Error().Err(err).Str("event", event).Msg("marshal event")
			return
		}
		raw = b
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(envelope{Event: event, Data: raw}); err != nil {
		c.logger.Debug().Err(err).Str("event", event).Msg("write failed")
	}
}
