package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"kgchat/backend/internal/agent"
	"kgchat/backend/internal/state"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
)

// Frame types on /ws
const (
	frameQuery    = "query"
	frameResponse = "response"
	frameError    = "error"
)

func (s *server) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(s.CORSOrigins))
	for _, o := range s.CORSOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

func (s *server) serveWS(c *gin.Context) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	ws := &wsSession{server: s, conn: conn, logger: s.Logger.With(zap.String("remote", conn.RemoteAddr().String()))}
	ws.serve()
}

// wsSession answers query frames of one connection in order
type wsSession struct {
	server *server
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex // serializes writes
}

func (ws *wsSession) serve() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	defer func() {
		cancel()
		<-done
		ws.conn.Close()
	}()

	go ws.pingLoop(ctx, done)

	ws.conn.SetReadLimit(maxMessageSize)
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error { return ws.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	ws.logger.Debug("Websocket connected")
	for {
		msgType, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				ws.logger.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := ws.handle(ctx, data); err != nil {
			ws.logger.Warn("Websocket write failed", zap.Error(err))
			return
		}
	}
}

func (ws *wsSession) handle(ctx context.Context, data []byte) error {
	var msg state.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ws.send(state.WSMessage{Type: frameError, Error: "Invalid JSON payload"})
	}
	if msg.Type != frameQuery {
		return ws.send(state.WSMessage{Type: frameError, Error: "Unsupported message type"})
	}

	req := state.QueryRequest{
		Query:               msg.Query,
		ConversationHistory: msg.ConversationHistory,
		Mode:                msg.Mode,
		IncludeGraph:        msg.IncludeGraph,
	}
	if err := req.Validate(); err != nil {
		return ws.send(state.WSMessage{Type: frameError, Error: err.Error()})
	}

	result, err := ws.server.Orchestrator.RunTurn(ctx, agent.TurnRequest{
		Query:        req.Query,
		History:      req.ConversationHistory,
		Mode:         req.Mode,
		IncludeGraph: req.WantsGraph(),
	})
	if err != nil {
		ws.logger.Error("Failed to run conversation turn", zap.Error(err))
		return ws.send(state.WSMessage{Type: frameError, Error: err.Error()})
	}
	return ws.send(state.WSMessage{Type: frameResponse, QueryResponse: agent.BuildQueryResponse(result)})
}

func (ws *wsSession) send(msg state.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *wsSession) pingLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
