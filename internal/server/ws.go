package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/render"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn is one browser connection. Reads and writes run in their own
// goroutines; everything outbound goes through send.
type wsConn struct {
	srv     *Server
	conn    *websocket.Conn
	session *chat.Session
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	id, isNew := sessionID(c)
	header := http.Header{}
	if isNew {
		header.Add("Set-Cookie", sessionCookieFor(id).String())
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	ws := &wsConn{
		srv:     s,
		conn:    conn,
		session: s.sessions.GetOrCreate(id),
		send:    make(chan []byte, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		closed:  make(chan struct{}),
	}
	s.logger.Debug("websocket connected", "session", id)

	hello, _ := sjson.SetBytes([]byte(`{"type":"session"}`), "session_id", id)
	ws.enqueue(hello)

	go ws.writeLoop()
	ws.readLoop()
}

func (w *wsConn) close() {
	w.closeOnce.Do(func() {
		w.cancel()
		close(w.closed)
		w.conn.Close()
		w.srv.logger.Debug("websocket closed", "session", w.session.ID())
	})
}

// enqueue drops the frame once the connection is gone
func (w *wsConn) enqueue(frame []byte) {
	select {
	case w.send <- frame:
	case <-w.closed:
	}
}

func (w *wsConn) readLoop() {
	defer w.close()

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.srv.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		w.handle(data)
	}
}

func (w *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.close()
	}()

	for {
		select {
		case frame := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.closed:
			return
		}
	}
}

func (w *wsConn) handle(data []byte) {
	if !gjson.ValidBytes(data) {
		w.sendError("invalid JSON message")
		return
	}
	msg := gjson.ParseBytes(data)

	switch msg.Get("type").String() {
	case "chat":
		useTools := true
		if v := msg.Get("use_tools"); v.Exists() {
			useTools = v.Bool()
		}
		req := chat.TurnRequest{Content: msg.Get("message").String(), UseTools: useTools}
		if w.session.Busy() {
			w.sendError(chat.ErrTurnInProgress.Error())
			return
		}
		go w.runTurn(req)
	case "cancel":
		w.session.Cancel()
	case "connect_server":
		go w.connectServer(msg.Get("server_id").String())
	case "disconnect_server":
		w.disconnectServer(msg.Get("server_id").String())
	default:
		w.sendError("unknown message type " + msg.Get("type").String())
	}
}

func (w *wsConn) runTurn(req chat.TurnRequest) {
	result, err := w.session.Run(w.ctx, req, func(cmds []render.Command) {
		for _, cmd := range cmds {
			w.sendCommand(cmd)
		}
	})
	if err != nil {
		w.sendError(err.Error())
		// The running turn sends its own turn_done.
		if errors.Is(err, chat.ErrTurnInProgress) {
			return
		}
		result = chat.TurnResult{State: render.StateErrored, Error: err.Error()}
	}

	frame := []byte(`{"type":"turn_done"}`)
	frame, _ = sjson.SetBytes(frame, "turn_id", result.TurnID)
	frame, _ = sjson.SetBytes(frame, "state", result.State)
	frame, _ = sjson.SetBytes(frame, "response", result.Response)
	if result.Error != "" {
		frame, _ = sjson.SetBytes(frame, "error", result.Error)
	}
	w.enqueue(frame)
}

func (w *wsConn) sendCommand(cmd render.Command) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		w.srv.logger.Error("failed to encode render command", "error", err)
		return
	}
	frame, err := sjson.SetRawBytes([]byte(`{"type":"render"}`), "command", raw)
	if err != nil {
		w.srv.logger.Error("failed to build render frame", "error", err)
		return
	}
	w.enqueue(frame)
}

func (w *wsConn) sendError(message string) {
	frame, _ := sjson.SetBytes([]byte(`{"type":"error"}`), "error", message)
	w.enqueue(frame)
}

func (w *wsConn) serverEvent(kind, name string, extra map[string]any) {
	frame := []byte(`{}`)
	frame, _ = sjson.SetBytes(frame, "type", kind)
	frame, _ = sjson.SetBytes(frame, "server", name)
	for k, v := range extra {
		frame, _ = sjson.SetBytes(frame, k, v)
	}
	w.enqueue(frame)
}

func (w *wsConn) connectServer(id string) {
	server, err := w.srv.servers.FindByPartialID(w.ctx, id)
	if err != nil {
		w.serverEvent("server_error", id, map[string]any{"error": err.Error()})
		return
	}
	if err := w.srv.tools.Connect(w.ctx, *server); err != nil {
		w.serverEvent("server_error", server.Name, map[string]any{"error": err.Error()})
		return
	}
	w.serverEvent("server_connected", server.Name, map[string]any{
		"tools_count": w.srv.tools.Status(server.Name).ToolCount,
	})
}

func (w *wsConn) disconnectServer(id string) {
	server, err := w.srv.servers.FindByPartialID(w.ctx, id)
	if err != nil {
		w.serverEvent("server_error", id, map[string]any{"error": err.Error()})
		return
	}
	if err := w.srv.tools.Disconnect(server.Name); err != nil {
		w.serverEvent("server_error", server.Name, map[string]any{"error": err.Error()})
		return
	}
	w.serverEvent("server_disconnected", server.Name, nil)
}
