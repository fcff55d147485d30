package haptics

import (
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"tiltball/motion"
)

const (
	KindImpact       = "impact"
	KindNotification = "notification"
)

type Event struct {
	Kind  string `json:"kind"`
	Style string `json:"style"`
}

func PulseEvent(i motion.Intensity) Event {
	return Event{Kind: KindImpact, Style: i.String()}
}

func NotifyEvent(n motion.Notification) Event {
	return Event{Kind: KindNotification, Style: n.String()}
}

// EmitFunc delivers one event to the device.
type EmitFunc func(Event) error

// NewPool builds the shared worker pool haptic sends run on. It never blocks
// the caller: a saturated pool rejects the task.
func NewPool(size int, log *zap.Logger) (*ants.Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("haptic task panicked", zap.Any("panic", p))
		}),
	)
}

// Dispatcher is a fire-and-forget motion.FeedbackSink. Failures are logged
// and dropped.
type Dispatcher struct {
	pool *ants.Pool
	emit EmitFunc
	log  *zap.Logger
}

func NewDispatcher(pool *ants.Pool, emit EmitFunc, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{pool: pool, emit: emit, log: log}
}

func (d *Dispatcher) Pulse(i motion.Intensity) {
	d.send(PulseEvent(i))
}

func (d *Dispatcher) Notify(n motion.Notification) {
	d.send(NotifyEvent(n))
}

func (d *Dispatcher) send(ev Event) {
	task := func() {
		if err := d.emit(ev); err != nil {
			d.log.Debug("haptic send failed", zap.String("kind", ev.Kind), zap.Error(err))
		}
	}
	if d.pool == nil {
		task()
		return
	}
	if err := d.pool.Submit(task); err != nil {
		d.log.Debug("haptic dropped", zap.String("kind", ev.Kind), zap.Error(err))
	}
}

// Recorder keeps every event it is given.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Pulse(i motion.Intensity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, PulseEvent(i))
}

func (r *Recorder) Notify(n motion.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NotifyEvent(n))
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
