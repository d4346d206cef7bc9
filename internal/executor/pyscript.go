package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"lf/internal/state"
	"lf/internal/toolchain"
	"lf/internal/value"
)

// pyPrelude is imported by every external Python invocation.
const pyPrelude = `import math, random, time, datetime
import json as _lf_json, ast as _lf_ast, inspect as _lf_inspect, types as _lf_types
`

// pyEpilogue dumps the resulting globals as JSON into the path given to _lf_dump.
const pyEpilogue = `

def _lf_plain(v, depth=0):
    if isinstance(v, (bool, str, int)):
        return True
    if isinstance(v, float):
        return v == v and v not in (float("inf"), float("-inf"))
    if isinstance(v, list) and depth == 0:
        return all(_lf_plain(x, 1) for x in v)
    return False


def _lf_dump(path):
    out = {"vars": [], "funcs": [], "names": []}
    for name, val in list(globals().items()):
        if name.startswith("_") or isinstance(val, _lf_types.ModuleType):
            continue
        out["names"].append(name)
        if callable(val):
            if getattr(val, "__module__", None) != "__main__":
                continue
            try:
                src = _lf_inspect.getsource(val)
            except (OSError, TypeError):
                continue
            out["funcs"].append({"name": name, "source": src})
            continue
        text = repr(val)
        try:
            _lf_ast.literal_eval(text)
            literal = True
        except Exception:
            literal = False
        entry = {"name": name, "repr": text, "literal": literal}
        if _lf_plain(val):
            entry["value"] = val
        out["vars"].append(entry)
    with open(path, "w", encoding="utf-8") as fh:
        _lf_json.dump(out, fh, allow_nan=False)
`

const (
	pyScriptName = "main.py"
	pyDumpName   = "state.json"
)

func (p *Python) external(ctx context.Context, req *Request) (*Result, error) {
	tool := toolchain.Python
	path, err := p.env.Locator.Find(tool)
	if err != nil {
		ee := execErr(ErrToolchainMissing, req, tool.Name, err)
		var me *toolchain.MissingError
		if errors.As(err, &me) {
			ee.Detail = me.Guidance
		}
		return nil, ee
	}

	dir, h, err := p.env.Janitor.TempDir("py-*")
	if err != nil {
		return nil, execErr(ErrRuntime, req, "", err)
	}
	defer func() { _ = p.env.Janitor.Release(h) }()

	script := filepath.Join(dir, pyScriptName)
	dump := filepath.Join(dir, pyDumpName)
	src, body := renderPython(req, dump)
	if err := os.WriteFile(script, []byte(src), 0o600); err != nil {
		return nil, execErr(ErrRuntime, req, "", err)
	}

	out, err := run(ctx, command{
		path:    path,
		args:    []string{"-B", script},
		timeout: p.env.timeouts("py").Run,
		stdout:  req.Stdout,
	})
	res := &Result{
		Run:    out.elapsed,
		Stderr: remapTraceback(strings.TrimSpace(out.stderr), script, body, req.Line),
	}
	if err != nil {
		ee := execErr(classify(err, ErrRuntime), req, tool.Name, err)
		ee.Detail = res.Stderr
		return nil, ee
	}
	upd, err := readDump(dump, req.State, req.Line)
	if err != nil {
		return nil, execErr(ErrRuntime, req, tool.Name, err)
	}
	res.Update = upd
	return res, nil
}

// bodyRange is the script line range holding the fragment, 1-based inclusive.
type bodyRange struct {
	first, last int
}

// renderPython builds the script: prelude, imports, state, fragment, dump.
func renderPython(req *Request, dumpPath string) (string, bodyRange) {
	var b strings.Builder
	b.WriteString(pyPrelude)
	for _, imp := range req.Imports {
		fmt.Fprintf(&b, "import %s\n", imp)
	}
	for _, bind := range req.State.Vars() {
		if decl, ok := pyDeclaration(bind); ok {
			b.WriteString(decl)
			b.WriteByte('\n')
		}
	}
	for _, f := range req.State.Funcs() {
		b.WriteString(strings.TrimRight(f.Source, "\n"))
		b.WriteByte('\n')
	}
	body := strings.TrimRight(dedent(req.Content), "\n")
	first := strings.Count(b.String(), "\n") + 1
	b.WriteString(body)
	b.WriteByte('\n')
	last := first + strings.Count(body, "\n")
	b.WriteString(pyEpilogue)
	fmt.Fprintf(&b, "_lf_dump(%s)\n", value.Quote(dumpPath))
	return b.String(), bodyRange{first: first, last: last}
}

// pyDeclaration re-creates a binding; values without a literal form are skipped.
func pyDeclaration(b state.Binding) (string, bool) {
	v := b.Value
	if v.Literal() {
		return b.Name + " = " + v.Repr(), true
	}
	if v.Kind() == value.KindFloat {
		return fmt.Sprintf("%s = float(%s)", b.Name, value.Quote(v.Repr())), true
	}
	return "", false
}

// remapTraceback rewrites script locations into source lines.
func remapTraceback(stderr, script string, body bodyRange, line uint32) string {
	if stderr == "" {
		return ""
	}
	re := regexp.MustCompile(`File "` + regexp.QuoteMeta(script) + `", line (\d+)`)
	return re.ReplaceAllStringFunc(stderr, func(m string) string {
		k, err := strconv.Atoi(re.FindStringSubmatch(m)[1])
		if err != nil || k < body.first || k > body.last {
			return "<lf prelude>"
		}
		return "line " + strconv.Itoa(int(line)+k-body.first)
	})
}

type pyDump struct {
	Vars []struct {
		Name    string          `json:"name"`
		Repr    string          `json:"repr"`
		Literal bool            `json:"literal"`
		Value   json.RawMessage `json:"value"`
	} `json:"vars"`
	Funcs []struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	} `json:"funcs"`
	Names []string `json:"names"`
}

// readDump turns the interpreter's globals into a state update relative to snap.
// A missing dump (the fragment called exit) changes nothing.
func readDump(path string, snap *state.Snapshot, line uint32) (state.Update, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state.Update{}, nil
	}
	if err != nil {
		return state.Update{}, err
	}
	var d pyDump
	if err := json.Unmarshal(data, &d); err != nil {
		return state.Update{}, fmt.Errorf("decode state dump: %w", err)
	}

	var u state.Update
	present := make(map[string]bool, len(d.Names))
	for _, n := range d.Names {
		present[n] = true
	}
	for _, b := range snap.Vars() {
		if !present[b.Name] {
			u.Deleted = append(u.Deleted, b.Name)
		}
	}
	known := make(map[string]string)
	for _, f := range snap.Funcs() {
		known[f.Name] = f.Source
		if !present[f.Name] {
			u.Deleted = append(u.Deleted, f.Name)
		}
	}

	for _, entry := range d.Vars {
		v := value.Unsupported(entry.Repr, entry.Literal)
		switch entry.Repr {
		case "inf":
			v = value.Float(math.Inf(1))
		case "-inf":
			v = value.Float(math.Inf(-1))
		case "nan":
			v = value.Float(math.NaN())
		}
		if len(entry.Value) > 0 {
			dec := json.NewDecoder(bytes.NewReader(entry.Value))
			dec.UseNumber()
			var x any
			if err := dec.Decode(&x); err != nil {
				return state.Update{}, fmt.Errorf("decode %s: %w", entry.Name, err)
			}
			v = value.FromJSON(x)
		}
		if old, ok := snap.Var(entry.Name); ok && old.Equal(v) {
			continue
		}
		u.Vars = append(u.Vars, state.Binding{Name: entry.Name, Value: v})
	}
	for _, f := range d.Funcs {
		src := strings.TrimRight(dedent(f.Source), "\n")
		if old, ok := known[f.Name]; ok && strings.TrimRight(old, "\n") == src {
			continue
		}
		u.Funcs = append(u.Funcs, state.Function{Name: f.Name, Source: src, Line: line})
	}
	return u, nil
}
