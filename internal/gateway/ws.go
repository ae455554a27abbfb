package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/internal/hub"
	"github.com/park285/chess-arena/internal/session"
	"github.com/park285/chess-arena/pkg/wire"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsOutBuffer    = 64
)

// WSServer terminates client websockets on /ws and runs one connection loop
// per socket.
type WSServer struct {
	gw     *Gateway
	logger *zap.Logger
	srv    *http.Server
}

func NewWSServer(addr string, gw *Gateway, logger *zap.Logger) *WSServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WSServer{gw: gw, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handle)
	s.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *WSServer) Start() error {
	s.logger.Info("ws_listen", zap.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *WSServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsConn{
		s:           s,
		conn:        conn,
		ctx:         ctx,
		cancel:      cancel,
		out:         make(chan wire.Event, wsOutBuffer),
		participant: strings.TrimSpace(r.URL.Query().Get("participant")),
	}
	go c.writeLoop()
	c.readLoop()
	c.cleanup()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

// wsConn is the per-socket state. The read loop is the only goroutine that
// touches sessionID/sub; all outbound frames funnel through out so exactly
// one goroutine writes to the socket.
type wsConn struct {
	s      *WSServer
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	participant string
	sessionID   string
	sub         *hub.Subscriber
	pumpStop    chan struct{}

	out chan wire.Event
}

func (c *wsConn) readLoop() {
	for {
		var cmd wire.Command
		if err := wsjson.Read(c.ctx, c.conn, &cmd); err != nil {
			return
		}
		c.dispatch(cmd)
	}
}

func (c *wsConn) dispatch(cmd wire.Command) {
	if p := strings.TrimSpace(cmd.Participant); p != "" {
		c.participant = p
	}

	switch cmd.Type {
	case wire.CmdCreateSession:
		snap, rej := c.s.gw.CreateSession(cmd)
		if rej != nil {
			c.send(*rej)
			return
		}
		c.join(snap.ID, false)
	case wire.CmdJoinSession:
		c.join(cmd.SessionID, cmd.Spectator)
	case wire.CmdReconnectSession:
		c.join(cmd.SessionID, false)
	case wire.CmdApplyMove, wire.CmdResign, wire.CmdOfferDraw, wire.CmdRespondDraw:
		if cmd.SessionID == "" {
			cmd.SessionID = c.sessionID
		}
		if rej := c.s.gw.Command(c.ctx, c.participant, cmd); rej != nil {
			c.send(*rej)
		}
	case wire.CmdChat:
		if cmd.SessionID == "" {
			cmd.SessionID = c.sessionID
		}
		if rej := c.s.gw.Chat(c.participant, cmd); rej != nil {
			c.send(*rej)
		}
	default:
		c.send(wire.Event{
			Type:      wire.EvtCommandRejected,
			SessionID: cmd.SessionID,
			Reason:    string(session.ErrInvalidCommand),
		})
	}
}

// join attaches this socket to a session, replacing any previous attachment.
// The snapshot frame is queued before the pump starts, so it always precedes
// streamed events on the wire.
func (c *wsConn) join(sessionID string, spectator bool) {
	c.detach()

	res, rej := c.s.gw.Join(sessionID, c.participant, spectator)
	if rej != nil {
		c.send(*rej)
		return
	}
	c.sessionID = res.Snapshot.ID
	c.sub = res.Sub
	c.pumpStop = make(chan struct{})

	c.send(wire.Event{
		Type:      wire.EvtSnapshot,
		SessionID: res.Snapshot.ID,
		Seat:      string(res.Seat),
		Snapshot:  wire.SnapshotFrom(res.Snapshot),
	})
	go c.pump(res.Sub, c.pumpStop)
}

// detach ends the current subscription, if any. The stop channel is closed
// first so the pump can tell a deliberate leave from a hub-side drop.
func (c *wsConn) detach() {
	if c.sub == nil {
		return
	}
	close(c.pumpStop)
	c.s.gw.Leave(c.sessionID, c.participant, c.sub)
	c.sub = nil
	c.sessionID = ""
}

// pump copies subscription events into the socket's outbound queue. A closed
// subscription without a prior stop means the hub dropped us; the socket is
// closed so the client can rejoin from a fresh snapshot.
func (c *wsConn) pump(sub *hub.Subscriber, stop chan struct{}) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-stop:
			return
		case evt, ok := <-sub.Events():
			if !ok {
				select {
				case <-stop:
				default:
					c.cancel()
				}
				return
			}
			select {
			case c.out <- evt:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, wsWriteTimeout)
			err := wsjson.Write(ctx, c.conn, evt)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *wsConn) send(evt wire.Event) {
	select {
	case c.out <- evt:
	case <-c.ctx.Done():
	}
}

func (c *wsConn) cleanup() {
	c.cancel()
	c.detach()
}
