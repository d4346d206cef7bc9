package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format is the encoding of written events.
type Format uint8

const (
	FormatAuto   Format = iota // NDJSON for .ndjson/.jsonl outputs, text otherwise
	FormatText
	FormatNDJSON
)

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson)", s)
}

// Resolve turns FormatAuto into a concrete format for an output path.
func (f Format) Resolve(path string) Format {
	if f != FormatAuto {
		return f
	}
	if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".jsonl") {
		return FormatNDJSON
	}
	return FormatText
}

// FormatEvent encodes ev as one line.
func FormatEvent(ev *Event, format Format) []byte {
	if format.Resolve("") == FormatNDJSON {
		return formatNDJSON(ev)
	}
	return formatText(ev)
}

type jsonEvent struct {
	Time      string `json:"time"`
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	Scope     string `json:"scope"`
	SpanID    uint64 `json:"span_id,omitempty"`
	ParentID  uint64 `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Detail    string `json:"detail,omitempty"`
	ElapsedUS int64  `json:"elapsed_us,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Line      uint32 `json:"line,omitempty"`
	Path      string `json:"path,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	j := jsonEvent{
		Time:      ev.Time.Format(time.RFC3339Nano),
		Seq:       ev.Seq,
		Kind:      ev.Kind.String(),
		Scope:     ev.Scope.String(),
		SpanID:    ev.SpanID,
		ParentID:  ev.ParentID,
		Name:      ev.Name,
		Detail:    ev.Detail,
		ElapsedUS: ev.Elapsed.Microseconds(),
	}
	if f := ev.Fragment; f != nil {
		j.Lang, j.Line = f.Lang, f.Line
	}
	if p := ev.Process; p != nil {
		j.Path = p.Path
		if p.ExitCode >= 0 {
			code := p.ExitCode
			j.ExitCode = &code
		}
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

var arrows = map[Kind]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
	KindHeartbeat: "♡ ",
}

// formatText renders
//
//	[hh:mm:ss.mmm] <indent><arrow>name (detail) elapsed {lang:line path exit=N}
func formatText(ev *Event) []byte {
	var sb strings.Builder
	sb.WriteString(ev.Time.Format("[15:04:05.000] "))
	if ev.Scope > ScopeCommand {
		sb.WriteString(strings.Repeat("  ", int(ev.Scope-ScopeCommand)))
	}
	sb.WriteString(arrows[ev.Kind])
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		sb.WriteString(" (" + ev.Detail + ")")
	}
	if ev.Elapsed > 0 {
		sb.WriteString(" " + ev.Elapsed.Round(time.Microsecond).String())
	}

	var attrs []string
	if f := ev.Fragment; f != nil {
		attrs = append(attrs, f.Lang+":"+strconv.FormatUint(uint64(f.Line), 10))
	}
	if p := ev.Process; p != nil {
		attrs = append(attrs, p.Path)
		if p.ExitCode >= 0 {
			attrs = append(attrs, "exit="+strconv.Itoa(p.ExitCode))
		}
	}
	if len(attrs) > 0 {
		sb.WriteString(" {" + strings.Join(attrs, " ") + "}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
