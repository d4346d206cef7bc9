package merge

import "strings"

// bracketScanner tracks bracket depth over Python source lines, skipping string
// literals and `#` comments. Triple-quoted strings may span lines.
type bracketScanner struct {
	depth  int
	triple byte // открытая тройная кавычка, 0 если нет
}

func (s *bracketScanner) feed(line string) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if s.triple != 0 {
			if c == s.triple && strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				s.triple = 0
				i += 2
			}
			continue
		}
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '#':
			return
		case '"', '\'':
			if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				s.triple = c
				i += 2
			} else {
				quote = c
			}
		case '(', '[', '{':
			s.depth++
		case ')', ']', '}':
			if s.depth > 0 {
				s.depth--
			}
		}
	}
}

func (s *bracketScanner) open() bool {
	return s.depth > 0 || s.triple != 0
}

// stripComment cuts a trailing `#` comment that is outside string literals.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '#':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// assignmentOpensBracket reports whether line is `target = expr` (or an augmented
// assignment) whose right side leaves a bracket open.
func assignmentOpensBracket(line string) bool {
	eq := assignmentIndex(line)
	if eq < 0 {
		return false
	}
	var s bracketScanner
	s.feed(line[eq+1:])
	return s.depth > 0
}

func assignmentIndex(line string) int {
	var quote byte
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '#':
			return -1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(line) && line[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("=!<>", line[i-1]) >= 0 {
				continue
			}
			return i
		}
	}
	return -1
}

func endsWithContinuation(line string) bool {
	line = strings.TrimRight(stripComment(line), " \t")
	if line == "" {
		return false
	}
	switch line[len(line)-1] {
	case ',', '[', '{', '(', '\\':
		return true
	}
	return false
}

// leadingWord returns the identifier at the start of s.
func leadingWord(s string) string {
	n := 0
	for n < len(s) {
		c := s[n]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || n > 0 && c >= '0' && c <= '9' {
			n++
			continue
		}
		break
	}
	return s[:n]
}

func leadingSpace(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}

// dedent removes up to width leading whitespace characters.
func dedent(s string, width int) string {
	return s[min(width, leadingSpace(s)):]
}
