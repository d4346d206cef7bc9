package trace

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Stream formats events as they arrive. Write errors are dropped: tracing
// never fails a run.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	buf    *bufio.Writer
	level  Level
	format Format
}

func NewStream(w io.Writer, level Level, format Format) *Stream {
	return &Stream{w: w, buf: bufio.NewWriter(w), level: level, format: format}
}

func (s *Stream) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !s.level.ShouldEmit(ev.Scope) {
		return
	}
	data := FormatEvent(ev, s.format)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.buf.Write(data)
	// конец span'а процесса или фрагмента сразу на диск: по нему видно, где застряли
	if ev.Kind != KindSpanBegin || ev.Scope == ScopeProcess {
		_ = s.buf.Flush()
	}
}

func (s *Stream) Level() Level { return s.level }

func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

// Close flushes and closes the writer unless it is a standard stream.
func (s *Stream) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.w == os.Stderr || s.w == os.Stdout {
		return nil
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
