package security

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"lf/internal/program"
	"lf/internal/trace"
)

// Screener runs the two screening layers. Safe for concurrent use.
type Screener struct {
	mu sync.Mutex
	py *pyParser
	// pyErr запоминает сбой загрузки грамматики, чтобы не пытаться снова
	pyErr error
}

// NewScreener returns a screener; the Python grammar loads on first use.
func NewScreener() *Screener { return &Screener{} }

// Close releases the Python parser.
func (s *Screener) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.py.Close()
	s.py = nil
}

// Screen checks one fragment. line is the fragment's first source line;
// findings carry absolute lines and are sorted by line then rule.
func (s *Screener) Screen(content, tag string, line uint32) []Finding {
	if line == 0 {
		line = 1
	}
	var out []Finding
	for _, r := range genericRules {
		out = appendMatch(out, r, KindPattern, content, tag, line)
	}
	for _, r := range languageRules[tag] {
		out = appendMatch(out, r, KindLanguageRule, content, tag, line)
	}
	if tag == "py" {
		out = append(out, s.screenPython(content, line)...)
	}
	sortFindings(out)
	return out
}

func (s *Screener) screenPython(content string, line uint32) []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.py == nil && s.pyErr == nil {
		s.py, s.pyErr = newPyParser()
	}
	if s.pyErr != nil {
		return nil
	}
	return s.py.screen(content, line)
}

// ScreenModel screens every fragment of m in source order.
func (s *Screener) ScreenModel(ctx context.Context, m *program.Model) []Finding {
	_, span := trace.StartSpan(ctx, trace.ScopePass, "screen")
	var out []Finding
	for _, f := range m.Fragments {
		out = append(out, s.Screen(f.Content, f.Lang, f.Line)...)
	}
	sortFindings(out)
	span.End(strconv.Itoa(len(out)) + " findings")
	return out
}

// appendMatch adds at most one finding per rule and fragment, at the first match.
func appendMatch(out []Finding, r rule, kind Kind, content, tag string, line uint32) []Finding {
	loc := r.re.FindStringIndex(content)
	if loc == nil {
		return out
	}
	off := uint32(strings.Count(content[:loc[0]], "\n")) //nolint:gosec // ограничено длиной фрагмента
	return append(out, Finding{
		Kind:   kind,
		Level:  r.level,
		Rule:   r.id,
		Line:   line + off,
		Lang:   tag,
		Detail: strings.TrimSpace(content[loc[0]:loc[1]]),
	})
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Line != fs[j].Line {
			return fs[i].Line < fs[j].Line
		}
		if fs[i].Kind != fs[j].Kind {
			return fs[i].Kind < fs[j].Kind
		}
		if fs[i].Rule != fs[j].Rule {
			return fs[i].Rule < fs[j].Rule
		}
		return fs[i].Detail < fs[j].Detail
	})
}
