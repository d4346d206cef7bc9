package trace

import (
	"context"
	"time"
)

type tracerKey struct{}

type spanKey struct{}

// spanState is what a context remembers about the innermost open span.
type spanState struct {
	id       uint64
	fragment *Fragment
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// WithTracer attaches t to ctx.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

func current(ctx context.Context) spanState {
	if ctx != nil {
		if st, ok := ctx.Value(spanKey{}).(spanState); ok {
			return st
		}
	}
	return spanState{}
}

// CurrentSpan returns the ID of the innermost recorded span in ctx, or 0.
func CurrentSpan(ctx context.Context) uint64 { return current(ctx).id }

func push(ctx context.Context, s *Span) context.Context {
	if s.id == 0 {
		return ctx
	}
	return context.WithValue(ctx, spanKey{}, spanState{id: s.id, fragment: s.fragment})
}

// StartSpan begins a command or pass span under the span carried by ctx.
func StartSpan(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	cur := current(ctx)
	s := begin(FromContext(ctx), scope, name, cur.id, cur.fragment, nil)
	return push(ctx, s), s
}

// StartFragment begins the span of one fragment. Spans and points started
// from the returned context are attributed to lang:line.
func StartFragment(ctx context.Context, lang string, line uint32) (context.Context, *Span) {
	s := begin(FromContext(ctx), ScopeFragment, "fragment", current(ctx).id, &Fragment{Lang: lang, Line: line}, nil)
	return push(ctx, s), s
}

// StartProcess begins the span of an external invocation of path.
func StartProcess(ctx context.Context, path string) *Span {
	cur := current(ctx)
	return begin(FromContext(ctx), ScopeProcess, "exec", cur.id, cur.fragment, &Process{Path: path, ExitCode: -1})
}

// Point emits an instant event under the span carried by ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Level().ShouldEmit(scope) {
		return
	}
	cur := current(ctx)
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      seq.Add(1),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: cur.id,
		Name:     name,
		Detail:   detail,
		Fragment: cur.fragment,
	})
}
