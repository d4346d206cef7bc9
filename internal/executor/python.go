package executor

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"lf/internal/state"
	"lf/internal/trace"
	"lf/internal/value"
)

// Python runs primary-language fragments. Fragments made only of simple
// statements are evaluated in-process; the rest go to the interpreter.
type Python struct {
	env *Env
}

func (p *Python) Execute(ctx context.Context, req *Request) (*Result, error) {
	upd, out, err := inlinePython(req.Content, req.State)
	if err == nil {
		trace.Point(ctx, trace.ScopeFragment, "inline", "python")
		if _, werr := io.WriteString(req.Stdout, out); werr != nil {
			return nil, execErr(ErrRuntime, req, "", werr)
		}
		return &Result{Update: upd, Inline: true}, nil
	}
	trace.Point(ctx, trace.ScopeFragment, "external", err.Error())
	return p.external(ctx, req)
}

var (
	assignRE = regexp.MustCompile(`^([A-Za-z_]\w*)\s*([-+*/]?=)\s*([^=].*)$`)
	printRE  = regexp.MustCompile(`^print\s*\((.*)\)$`)
	delRE    = regexp.MustCompile(`^del\s+(.+)$`)
	kwargRE  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=\s*([^=].*)$`)
)

// shadowed names keep their builtin meaning in-process.
var shadowed = words(`print len str int float bool round abs min max sum True False None`)

// pyRun is the in-process interpretation of one fragment.
type pyRun struct {
	ev       *evaluator
	snap     *state.Snapshot
	out      strings.Builder
	assigned []string
	deleted  []string
}

// inlinePython evaluates simple statements; output is returned only when the
// whole fragment succeeded.
func inlinePython(content string, snap *state.Snapshot) (state.Update, string, error) {
	r := &pyRun{ev: newEvaluator(snap), snap: snap}
	for _, raw := range strings.Split(dedent(content), "\n") {
		line := strings.TrimRight(stripPyComment(raw), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return state.Update{}, "", fmt.Errorf("%w: indented block", errDeclined)
		}
		if strings.HasSuffix(line, ":") || strings.HasSuffix(line, "\\") {
			return state.Update{}, "", fmt.Errorf("%w: compound statement", errDeclined)
		}
		if err := r.statement(line); err != nil {
			return state.Update{}, "", err
		}
	}
	return r.update(), r.out.String(), nil
}

func (r *pyRun) statement(line string) error {
	switch {
	case line == "pass":
		return nil
	case printRE.MatchString(line):
		if parts, err := splitTopLevel(printRE.FindStringSubmatch(line)[1]); err == nil {
			return r.print(parts)
		}
	case delRE.MatchString(line):
		return r.del(delRE.FindStringSubmatch(line)[1])
	}
	if m := assignRE.FindStringSubmatch(line); m != nil {
		return r.assign(m[1], m[2], strings.TrimSpace(m[3]))
	}
	_, err := r.ev.eval(line)
	return err
}

func (r *pyRun) print(args []string) error {
	sep, end := " ", "\n"
	var parts []string
	for _, a := range args {
		if m := kwargRE.FindStringSubmatch(a); m != nil {
			v, err := r.ev.eval(strings.TrimSpace(m[2]))
			if err != nil {
				return err
			}
			if m[1] == "flush" {
				continue
			}
			s, isStr := v.(string)
			if v != nil && !isStr {
				return fmt.Errorf("%w: %s must be str or None", errDeclined, m[1])
			}
			switch m[1] {
			case "sep":
				if v != nil {
					sep = s
				}
			case "end":
				if v != nil {
					end = s
				}
			default:
				return fmt.Errorf("%w: print(%s=...)", errDeclined, m[1])
			}
			continue
		}
		v, err := r.ev.eval(a)
		if err != nil {
			return err
		}
		parts = append(parts, value.FromNative(v).Str())
	}
	r.out.WriteString(strings.Join(parts, sep))
	r.out.WriteString(end)
	return nil
}

func (r *pyRun) assign(name, op, rhs string) error {
	if shadowed[name] || reservedWords[name] {
		return fmt.Errorf("%w: assignment to %s", errDeclined, name)
	}
	if op != "=" {
		if !r.ev.has(name) {
			return fmt.Errorf("%w: %s is not defined", errDeclined, name)
		}
		rhs = fmt.Sprintf("(%s) %s (%s)", name, op[:1], rhs)
	}
	v, err := r.ev.eval(rhs)
	if err != nil {
		return err
	}
	r.ev.set(name, v)
	r.assigned = appendUnique(r.assigned, name)
	r.deleted = removeName(r.deleted, name)
	return nil
}

func (r *pyRun) del(targets string) error {
	for _, name := range strings.Split(targets, ",") {
		name = strings.TrimSpace(name)
		if !isIdentifier(name) || shadowed[name] {
			return fmt.Errorf("%w: del %s", errDeclined, name)
		}
		if !r.ev.has(name) && !r.snap.HasFunc(name) {
			return fmt.Errorf("%w: %s is not defined", errDeclined, name)
		}
		delete(r.ev.env, name)
		r.assigned = removeName(r.assigned, name)
		r.deleted = appendUnique(r.deleted, name)
	}
	return nil
}

func (r *pyRun) update() state.Update {
	var u state.Update
	for _, name := range r.assigned {
		u.Vars = append(u.Vars, state.Binding{Name: name, Value: value.FromNative(r.ev.env[name])})
	}
	u.Deleted = append(u.Deleted, r.deleted...)
	return u
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// stripPyComment cuts a '#' comment that is not inside a string.
func stripPyComment(line string) string {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"', '\'':
			end := closingQuote(line, i)
			if end < 0 {
				return line
			}
			i = end
		case '#':
			return line[:i]
		}
	}
	return line
}

// dedent removes the indentation common to all non-blank lines.
func dedent(code string) string {
	lines := strings.Split(code, "\n")
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return code
	}
	for i, l := range lines {
		if len(l) >= common {
			lines[i] = l[common:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
