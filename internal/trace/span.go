package trace

import (
	"sync/atomic"
	"time"
)

var (
	seq    atomic.Uint64
	spanID atomic.Uint64
)

// Span is an open span; End emits its closing event. A Span that is not
// recorded (tracing off or scope filtered out) has ID 0 and ignores all calls.
type Span struct {
	t        Tracer
	id       uint64
	parent   uint64
	scope    Scope
	name     string
	started  time.Time
	fragment *Fragment
	process  *Process
}

var noSpan = &Span{}

func begin(t Tracer, scope Scope, name string, parent uint64, frag *Fragment, proc *Process) *Span {
	if t == nil || !t.Level().ShouldEmit(scope) {
		return noSpan
	}
	s := &Span{
		t:        t,
		id:       spanID.Add(1),
		parent:   parent,
		scope:    scope,
		name:     name,
		started:  time.Now(),
		fragment: frag,
		process:  proc,
	}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	ev := &Event{
		Time:     at,
		Seq:      seq.Add(1),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Fragment: s.fragment,
	}
	if s.process != nil {
		p := *s.process
		ev.Process = &p
	}
	if kind == KindSpanEnd {
		ev.Elapsed = at.Sub(s.started)
	}
	return ev
}

// Exited records the exit code of a process span.
func (s *Span) Exited(code int) *Span {
	if s.process != nil {
		s.process.ExitCode = code
	}
	return s
}

// End emits the closing event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s.id == 0 {
		return 0
	}
	ev := s.event(KindSpanEnd, time.Now(), detail)
	s.t.Emit(ev)
	return ev.Elapsed
}

// ID returns the span ID, 0 for an unrecorded span.
func (s *Span) ID() uint64 { return s.id }
