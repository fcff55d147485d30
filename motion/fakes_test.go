package motion

import (
	"context"
	"errors"
	"sync"
	"time"

	"tiltball/spring"
)

type fakeSub struct {
	mu       sync.Mutex
	cancels  int
	onCancel func()
}

func (f *fakeSub) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	if f.onCancel != nil {
		f.onCancel()
	}
}

func (f *fakeSub) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type fakeSource struct {
	available bool
	probeErr  error
	subErr    error
	probes    int
	interval  time.Duration
	cb        func(OrientationSample)
	subs      []*fakeSub
}

func (f *fakeSource) IsAvailable(context.Context) (bool, error) {
	f.probes++
	return f.available, f.probeErr
}

func (f *fakeSource) SetInterval(d time.Duration) { f.interval = d }

func (f *fakeSource) Subscribe(fn func(OrientationSample)) (Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.cb = fn
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeSource) emit(s OrientationSample) {
	if f.cb != nil {
		f.cb(s)
	}
}

type animateCall struct {
	target float64
	params spring.Params
}

type fakeTrack struct {
	value float64
	calls []animateCall
}

func (t *fakeTrack) AnimateTo(target float64, p spring.Params) {
	t.calls = append(t.calls, animateCall{target: target, params: p})
	// converge instantly so Rendered follows Target
	t.value = target
}

func (t *fakeTrack) Jump(v float64) { t.value = v }

func (t *fakeTrack) Value() float64 { return t.value }

func (t *fakeTrack) last() animateCall {
	if len(t.calls) == 0 {
		return animateCall{}
	}
	return t.calls[len(t.calls)-1]
}

type fakeSmoother struct {
	tracks []*fakeTrack
}

func (f *fakeSmoother) NewTrack(initial float64) Track {
	t := &fakeTrack{value: initial}
	f.tracks = append(f.tracks, t)
	return t
}

type fakeSink struct {
	mu      sync.Mutex
	pulses  []Intensity
	notices []Notification
}

func (f *fakeSink) Pulse(i Intensity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses = append(f.pulses, i)
}

func (f *fakeSink) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

var errBoom = errors.New("boom")
