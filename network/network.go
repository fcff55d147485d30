package network

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tiltball/protocol"
	"tiltball/room"
)

var ErrSendBufferFull = errors.New("send buffer full")

type Options struct {
	ReadLimit    int64
	SendBuffer   int
	PongWait     time.Duration
	PingInterval time.Duration
	WriteWait    time.Duration
	HelloWait    time.Duration
	JoinWait     time.Duration
}

func (o *Options) defaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20 // 1MB
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.HelloWait <= 0 {
		o.HelloWait = 10 * time.Second
	}
	if o.JoinWait <= 0 {
		o.JoinWait = 5 * time.Second
	}
}

type Handler struct {
	rooms    *room.Manager
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(rooms *room.Manager, opts Options, log *zap.Logger) *Handler {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		rooms: rooms,
		opts:  opts,
		log:   log,
		upgrader: websocket.Upgrader{
			// Phones connect from an app, not a browser page.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades /ws/{code}, joins the room and pumps messages until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	rm := h.rooms.GetOrCreateRoom(code)
	if rm == nil {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade", zap.Error(err))
		return
	}
	log := h.log.With(zap.String("room", code), zap.String("remote", r.RemoteAddr))

	ws.SetReadLimit(h.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.HelloWait))

	hello, err := readHello(ws)
	if err != nil {
		log.Debug("bad hello", zap.Error(err))
		writeError(ws, h.opts.WriteWait, protocol.ErrCodeBadMessage, err.Error())
		_ = ws.Close()
		return
	}

	conn := newWSConn(ws, h.opts, log)
	go conn.writeLoop()

	reply := make(chan room.JoinResult, 1)
	var res room.JoinResult
	select {
	case rm.Inbox <- room.Join{Conn: conn, Hello: hello, Reply: reply}:
	case <-rm.Done():
		_ = conn.Close()
		return
	}
	select {
	case res = <-reply:
	case <-rm.Done():
		_ = conn.Close()
		return
	case <-time.After(h.opts.JoinWait):
		log.Warn("join timed out")
		_ = conn.Close()
		return
	}
	if res.ClientID == "" {
		// rejected before joining; the room never saw this conn
		if res.Err != nil {
			if b, err := protocol.Encode(protocol.MsgError, res.Err); err == nil {
				_ = conn.Send(b)
			}
		}
		_ = conn.Close()
		return
	}

	h.readLoop(ws, rm, res.ClientID, log)

	select {
	case rm.Inbox <- room.Leave{ClientID: res.ClientID}:
	case <-rm.Done():
		_ = conn.Close()
	}
}

func readHello(ws *websocket.Conn) (protocol.Hello, error) {
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return protocol.Hello{}, err
	}
	env, err := protocol.DecodeEnvelope(msg)
	if err != nil {
		return protocol.Hello{}, err
	}
	if env.T != protocol.MsgHello {
		return protocol.Hello{}, errors.New("expected hello")
	}
	hello, err := protocol.DecodePayload[protocol.Hello](env)
	if err != nil {
		return protocol.Hello{}, err
	}
	if hello.V != protocol.Version {
		return protocol.Hello{}, fmt.Errorf("unsupported protocol version %d", hello.V)
	}
	return hello, nil
}

func (h *Handler) readLoop(ws *websocket.Conn, rm *room.Room, id string, log *zap.Logger) {
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))

		cmd, err := toCommand(id, msg)
		if err != nil {
			log.Debug("dropping message", zap.Error(err))
			continue
		}
		select {
		case rm.Inbox <- cmd:
		case <-rm.Done():
			return
		}
	}
}

// toCommand decodes one client envelope into the room command it asks for.
func toCommand(id string, msg []byte) (any, error) {
	env, err := protocol.DecodeEnvelope(msg)
	if err != nil {
		return nil, err
	}
	switch env.T {
	case protocol.MsgStart:
		return room.StartPlay{ClientID: id}, nil
	case protocol.MsgStop:
		return room.StopPlay{ClientID: id}, nil
	case protocol.MsgSample:
		s, err := protocol.DecodePayload[protocol.Sample](env)
		if err != nil {
			return nil, err
		}
		return room.Sample{ClientID: id, Sample: s.Orientation()}, nil
	case protocol.MsgContact:
		at := time.Now()
		if c, err := protocol.DecodePayload[protocol.Contact](env); err == nil && c.At > 0 {
			at = time.UnixMilli(c.At)
		}
		return room.Contact{ClientID: id, At: at}, nil
	default:
		return nil, errors.New("unexpected message type " + env.T)
	}
}

func writeError(ws *websocket.Conn, wait time.Duration, code, message string) {
	b, err := protocol.Encode(protocol.MsgError, protocol.Error{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(wait))
	_ = ws.WriteMessage(websocket.TextMessage, b)
}

// wsConn is the room.Conn for a websocket client. Send never blocks the room:
// a client that cannot keep up gets an error and is dropped.
type wsConn struct {
	ws   *websocket.Conn
	opts Options
	log  *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, opts Options, log *zap.Logger) *wsConn {
	return &wsConn{
		ws:   ws,
		opts: opts,
		log:  log,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(b []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write", zap.Error(err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		}
	}
}

// flush writes whatever was queued before Close.
func (c *wsConn) flush() {
	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		default:
			return
		}
	}
}

var _ room.Conn = (*wsConn)(nil)
