package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat wraps a tracer and, every interval, emits an event naming the
// innermost span that is still open. A compiler that hangs shows up as a
// series of heartbeats pointing at its exec span and fragment.
type Heartbeat struct {
	next     Tracer
	interval time.Duration

	mu   sync.Mutex
	open map[uint64]Event // begin events of spans not yet ended

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat starts the ticker. It returns nil when t is disabled or
// interval is not positive; a nil *Heartbeat is safe to Stop.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Level().Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		next:     t,
		interval: interval,
		open:     make(map[uint64]Event),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Heartbeat) Emit(ev *Event) {
	h.mu.Lock()
	switch ev.Kind {
	case KindSpanBegin:
		h.open[ev.SpanID] = *ev
	case KindSpanEnd:
		delete(h.open, ev.SpanID)
	}
	h.mu.Unlock()
	h.next.Emit(ev)
}

func (h *Heartbeat) Level() Level { return h.next.Level() }
func (h *Heartbeat) Flush() error { return h.next.Flush() }

// Close stops the ticker and closes the wrapped tracer.
func (h *Heartbeat) Close() error {
	h.Stop()
	return h.next.Close()
}

// Stop ends the ticker and waits for it. Safe to call more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Heartbeat) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			h.next.Emit(h.beat(n, now))
		}
	}
}

// beat builds the n-th heartbeat event at now.
func (h *Heartbeat) beat(n int, now time.Time) *Event {
	ev := &Event{
		Time:   now,
		Seq:    seq.Add(1),
		Kind:   KindHeartbeat,
		Scope:  ScopeCommand,
		Name:   "heartbeat",
		Detail: fmt.Sprintf("#%d", n),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var inner *Event
	for id := range h.open {
		if b := h.open[id]; inner == nil || b.SpanID > inner.SpanID {
			inner = &b
		}
	}
	if inner != nil {
		ev.ParentID = inner.SpanID
		ev.Fragment = inner.Fragment
		ev.Process = inner.Process
		ev.Elapsed = now.Sub(inner.Time)
		ev.Detail += " in " + inner.Name
	}
	return ev
}
