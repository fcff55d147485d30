package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"tiltball/haptics"
	"tiltball/motion"
	"tiltball/protocol"
	"tiltball/sensor"
	"tiltball/spring"
)

type Options struct {
	FrameHz     int
	BroadcastHz int
	Pool        *ants.Pool // haptic sends; nil sends inline
	Logger      *zap.Logger
	Now         func() time.Time
}

type client struct {
	conn Conn
	role string
	name string
}

// Room hosts one device's ball and any viewers watching it. Everything that
// touches the session runs on the Run goroutine.
type Room struct {
	Inbox          chan any
	frameHz        int
	broadcastEvery int
	clients        map[string]*client
	quit           chan struct{}
	stopOnce       sync.Once
	numClients     atomic.Int32

	pool *ants.Pool
	log  *zap.Logger
	now  func() time.Time

	// device side, set while a device is connected
	deviceID string
	engine   *spring.Engine
	gyro     *sensor.Remote
	ctrl     *motion.Controller
	session  *motion.Session
	touching bool

	Code    string            // room code (e.g. "ABC123")
	OnEmpty func(code string) // called when last client leaves
}

func New(opts Options) *Room {
	if opts.FrameHz <= 0 {
		opts.FrameHz = protocol.FrameHz
	}
	if opts.BroadcastHz <= 0 {
		opts.BroadcastHz = protocol.BroadcastHz
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	broadcastEvery := opts.FrameHz / opts.BroadcastHz
	if broadcastEvery <= 0 {
		broadcastEvery = 1
	}
	return &Room{
		Inbox:          make(chan any, 256),
		frameHz:        opts.FrameHz,
		broadcastEvery: broadcastEvery,
		clients:        make(map[string]*client),
		quit:           make(chan struct{}),
		pool:           opts.Pool,
		log:            opts.Logger,
		now:            opts.Now,
	}
}

func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done is closed once the room has been told to stop.
func (r *Room) Done() <-chan struct{} {
	return r.quit
}

// NumClients returns the current number of connected clients.
func (r *Room) NumClients() int {
	return int(r.numClients.Load())
}

func (r *Room) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(r.frameHz))
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			r.shutdown()
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			r.frame()
		}
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		c.Reply <- r.handleJoin(c)
	case StartPlay:
		r.handleStart(c.ClientID)
	case StopPlay:
		if r.isDevice(c.ClientID) {
			r.ctrl.Stop(r.session)
		}
	case Sample:
		r.handleSample(c)
	case Contact:
		if !r.isDevice(c.ClientID) {
			return
		}
		// the cooldown runs on the room clock; device time is only logged
		r.log.Debug("device contact", zap.String("room", r.Code), zap.Time("at", c.At))
		r.bump()
	case Leave:
		r.handleLeave(c.ClientID)
	}
}

func (r *Room) handleJoin(j Join) JoinResult {
	id := uuid.NewString()
	role := j.Hello.Role
	if role != protocol.RoleDevice {
		role = protocol.RoleViewer
	}
	if role == protocol.RoleDevice && r.deviceID != "" {
		return JoinResult{Err: &protocol.Error{Code: protocol.ErrCodeRoomFull, Message: "room already has a device"}}
	}

	r.clients[id] = &client{conn: j.Conn, role: role, name: j.Hello.Name}
	r.numClients.Add(1)

	var area motion.GameArea
	var availErr error
	if role == protocol.RoleDevice {
		area, availErr = r.attachDevice(id, j.Conn, j.Hello)
	} else if r.session != nil {
		area = r.session.Area
	}

	r.sendTo(j.Conn, protocol.MsgWelcome, protocol.Welcome{
		ClientID: id,
		RoomCode: r.Code,
		Role:     role,
		FrameHz:  r.frameHz,
		Area:     area,
	})
	res := JoinResult{ClientID: id, Role: role}
	if availErr != nil {
		res.Err = &protocol.Error{Code: protocol.ErrCodeSensorUnavailable, Message: availErr.Error()}
		r.sendTo(j.Conn, protocol.MsgError, res.Err)
	}
	r.log.Info("client joined",
		zap.String("room", r.Code),
		zap.String("client", id),
		zap.String("role", role),
		zap.Bool("gyroscope", j.Hello.Gyroscope))
	return res
}

// attachDevice builds the motion pipeline for a freshly joined device.
func (r *Room) attachDevice(id string, conn Conn, h protocol.Hello) (motion.GameArea, error) {
	area := motion.AreaFromViewport(h.Viewport, h.Insets)

	r.deviceID = id
	r.touching = false
	r.engine = spring.NewEngine(r.frameHz)
	r.gyro = sensor.NewRemote(h.Gyroscope, func(interval time.Duration, streaming bool) error {
		b, err := protocol.Encode(protocol.MsgSensor, protocol.SensorConfig{
			IntervalMs: int(interval / time.Millisecond),
			Streaming:  streaming,
		})
		if err != nil {
			return err
		}
		return conn.Send(b)
	})
	sink := haptics.NewDispatcher(r.pool, func(ev haptics.Event) error {
		b, err := protocol.Encode(protocol.MsgHaptic, protocol.Haptic{Kind: ev.Kind, Style: ev.Style})
		if err != nil {
			return err
		}
		return conn.Send(b)
	}, r.log.Named("haptics"))
	r.ctrl = motion.NewController(r.gyro, motion.SpringSmoother(r.engine), sink, r.log.Named("motion"))

	sess, err := r.ctrl.NewSession(area)
	if err != nil {
		// AreaFromViewport never yields an area smaller than the ball
		r.log.Error("new session", zap.Error(err))
	}
	r.session = sess

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return area, r.ctrl.CheckAvailability(ctx)
}

func (r *Room) isDevice(id string) bool {
	return id != "" && id == r.deviceID && r.session != nil
}

func (r *Room) handleStart(id string) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	if !r.isDevice(id) {
		r.sendTo(c.conn, protocol.MsgError, protocol.Error{Code: protocol.ErrCodeNotDevice, Message: "only the device can start play"})
		return
	}
	err := r.ctrl.Start(r.session)
	switch {
	case err == nil:
		r.touching = false
		r.log.Info("play started", zap.String("room", r.Code), zap.String("session", r.session.ID))
	case errors.Is(err, motion.ErrSensorUnavailable):
		r.sendTo(c.conn, protocol.MsgError, protocol.Error{Code: protocol.ErrCodeSensorUnavailable, Message: err.Error()})
	default:
		r.sendTo(c.conn, protocol.MsgError, protocol.Error{Code: protocol.ErrCodeSubscriptionFailed, Message: err.Error()})
	}
}

func (r *Room) handleSample(s Sample) {
	if !r.isDevice(s.ClientID) {
		return
	}
	if !r.gyro.Deliver(s.Sample) {
		return
	}
	t := r.session.Target()
	if c, ok := r.clients[s.ClientID]; ok {
		r.sendTo(c.conn, protocol.MsgTarget, protocol.Target{X: t.X, Y: t.Y})
	}
}

// bump handles one wall contact. Each contact that gets past the haptic
// cooldown scores a point.
func (r *Room) bump() {
	if r.ctrl.MaybeEmitFeedback(r.session, r.now()) {
		r.session.AddScore(1)
	}
}

func (r *Room) frame() {
	if r.engine == nil || r.session == nil {
		return
	}
	r.engine.Step()

	if r.session.State() == motion.Active {
		touching := motion.TouchesEdge(r.session.Area, r.session.Rendered(), motion.EdgeEpsilon)
		if touching && !r.touching {
			r.bump()
		}
		r.touching = touching
	}

	if r.engine.Frame()%r.broadcastEvery == 0 {
		r.broadcastState()
	}
}

func (r *Room) handleLeave(id string) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	if id == r.deviceID {
		r.detachDevice()
	}
	r.sendStateTo(c.conn)
	_ = c.conn.Close()
	delete(r.clients, id)
	r.numClients.Add(-1)
	r.log.Info("client left", zap.String("room", r.Code), zap.String("client", id))

	if len(r.clients) == 0 && r.OnEmpty != nil && r.Code != "" {
		r.OnEmpty(r.Code)
	}
}

func (r *Room) detachDevice() {
	if r.ctrl != nil && r.session != nil {
		r.ctrl.Stop(r.session)
	}
	r.deviceID = ""
	r.engine = nil
	r.gyro = nil
	r.ctrl = nil
	r.session = nil
	r.touching = false
}

func (r *Room) removeClient(id string) {
	if c, ok := r.clients[id]; ok {
		_ = c.conn.Close()
		delete(r.clients, id)
		r.numClients.Add(-1)
	}
	if id == r.deviceID {
		r.detachDevice()
	}
	if len(r.clients) == 0 && r.OnEmpty != nil && r.Code != "" {
		r.OnEmpty(r.Code)
	}
}

func (r *Room) shutdown() {
	r.detachDevice()
	for id, c := range r.clients {
		_ = c.conn.Close()
		delete(r.clients, id)
	}
	r.numClients.Store(0)
}

func (r *Room) broadcastState() {
	b, err := protocol.Encode(protocol.MsgState, r.buildSnapshot())
	if err != nil {
		return
	}

	var failed []string
	for id, c := range r.clients {
		if err := c.conn.Send(b); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		r.log.Debug("dropping client after failed send", zap.String("room", r.Code), zap.String("client", id))
		r.removeClient(id)
	}
}

func (r *Room) sendStateTo(c Conn) {
	r.sendTo(c, protocol.MsgState, r.buildSnapshot())
}

func (r *Room) sendTo(c Conn, t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		r.log.Error("encode", zap.String("type", t), zap.Error(err))
		return
	}
	_ = c.Send(b)
}

func (r *Room) buildSnapshot() protocol.State {
	snapshot := protocol.State{Viewers: len(r.clients)}
	if r.deviceID != "" {
		snapshot.Viewers--
	}
	if r.session == nil {
		return snapshot
	}
	snapshot.Frame = r.engine.Frame()
	snapshot.Playing = r.session.State() == motion.Active
	snapshot.Score = r.session.Score()
	snapshot.Ball = r.session.Rendered()
	snapshot.Target = r.session.Target()
	snapshot.Area = r.session.Area
	return snapshot
}
