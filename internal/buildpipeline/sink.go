package buildpipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// LineSink prints finished and failed per-file stages, one line each.
// It is used when the progress UI is off.
type LineSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (s *LineSink) OnEvent(evt Event) {
	if s == nil || s.W == nil || evt.File == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch evt.Status {
	case StatusDone:
		fmt.Fprintf(s.W, "%-9s %s (%s)\n", evt.Stage, evt.File, evt.Elapsed.Round(time.Microsecond))
	case StatusError:
		fmt.Fprintf(s.W, "%-9s %s: %v\n", evt.Stage, evt.File, evt.Err)
	}
}
