package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

// Scope is the granularity of an event; lower values are coarser.
type Scope uint8

const (
	ScopeCommand  Scope = iota + 1 // one CLI command
	ScopePass                      // parse, screen, serialize, package, run
	ScopeFragment                  // one fragment execution
	ScopeProcess                   // one compiler or interpreter invocation
)

func (s Scope) String() string {
	switch s {
	case ScopeCommand:
		return "command"
	case ScopePass:
		return "pass"
	case ScopeFragment:
		return "fragment"
	case ScopeProcess:
		return "process"
	}
	return "unknown"
}

// Fragment names the lf fragment an event belongs to.
type Fragment struct {
	Lang string
	Line uint32
}

// Process describes an external invocation.
type Process struct {
	Path string
	// ExitCode is -1 until the process has exited, and stays -1 when it was
	// killed or never started.
	ExitCode int
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Name     string
	Detail   string
	Elapsed  time.Duration // span end only
	Fragment *Fragment
	Process  *Process
}
