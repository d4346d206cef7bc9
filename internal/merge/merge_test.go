package merge

import (
	"fmt"
	"strings"
	"testing"

	"lf/internal/diag"
	"lf/internal/lexer"
)

func fragmentsOf(t *testing.T, src string) []Fragment {
	t.Helper()
	return Fragments(lexer.SegmentString(src, nil), nil, nil)
}

func TestIndependentLinesKeepTheirLines(t *testing.T) {
	src := "py.x = 1\n\n// note\ncpp.printf(\"a\");\njs.console.log(1)\npy.print(x)\n"
	frags := fragmentsOf(t, src)
	want := []struct {
		line uint32
		lang string
	}{{1, "py"}, {4, "cpp"}, {5, "js"}, {6, "py"}}
	if len(frags) != len(want) {
		t.Fatalf("got %d fragments, want %d", len(frags), len(want))
	}
	for i, w := range want {
		if frags[i].Line != w.line || frags[i].Lang != w.lang || frags[i].Merged {
			t.Errorf("fragment %d = %+v, want line %d lang %s", i, frags[i], w.line, w.lang)
		}
	}
}

func TestOrderInvariantForManyLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "py.v%d = %d\n", i, i)
	}
	frags := fragmentsOf(t, b.String())
	if len(frags) != 25 {
		t.Fatalf("got %d fragments, want 25", len(frags))
	}
	for i, f := range frags {
		if f.Line != uint32(i+1) {
			t.Errorf("fragment %d line = %d", i, f.Line)
		}
	}
}

func TestMergeBlocks(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  []string
		lines []uint32
	}{
		{
			name:  "keyword block with unprefixed body",
			src:   "py.def add(a, b):\n    s = a + b\n    return s\npy.print(add(1, 2))\n",
			want:  []string{"def add(a, b):\n    s = a + b\n    return s", "print(add(1, 2))"},
			lines: []uint32{1, 4},
		},
		{
			name:  "prefixed body lines",
			src:   "py.for i in range(3):\npy.    print(i)\npy.print(\"done\")\n",
			want:  []string{"for i in range(3):\n    print(i)", "print(\"done\")"},
			lines: []uint32{1, 3},
		},
		{
			name:  "blank and comment lines inside",
			src:   "py.if x:\n\n    // lf comment\n    y = 1\n    # python comment\n    z = 2\npy.w = 3\n",
			want:  []string{"if x:\n    y = 1\n    # python comment\n    z = 2", "w = 3"},
			lines: []uint32{1, 7},
		},
		{
			name:  "else continues at base",
			src:   "py.if x:\n    a = 1\npy.else:\n    a = 2\npy.print(a)\n",
			want:  []string{"if x:\n    a = 1\nelse:\n    a = 2", "print(a)"},
			lines: []uint32{1, 5},
		},
		{
			name:  "try except finally",
			src:   "py.try:\n    f()\npy.except ValueError:\n    pass\npy.finally:\n    done()\n",
			want:  []string{"try:\n    f()\nexcept ValueError:\n    pass\nfinally:\n    done()"},
			lines: []uint32{1},
		},
		{
			name:  "decorator then def",
			src:   "py.@cache\npy.def f():\n    return 1\npy.f()\n",
			want:  []string{"@cache\ndef f():\n    return 1", "f()"},
			lines: []uint32{1, 4},
		},
		{
			name:  "assignment opening a bracket",
			src:   "py.data = {\n    \"a\": 1,\n    \"b\": 2\n}\npy.print(data)\n",
			want:  []string{"data = {\n    \"a\": 1,\n    \"b\": 2\n}", "print(data)"},
			lines: []uint32{1, 5},
		},
		{
			name:  "guest line ends the unit",
			src:   "py.def f():\n    return 1\ncpp.printf(\"x\");\n    stray\n",
			want:  []string{"def f():\n    return 1", "printf(\"x\");"},
			lines: []uint32{1, 3},
		},
		{
			name:  "indented opener is rebased",
			src:   "  py.if ok:\n  py.    go()\n  py.else:\n  py.    stop()\n",
			want:  []string{"if ok:\n    go()\nelse:\n    stop()"},
			lines: []uint32{1},
		},
		{
			name:  "trailing comma continuation at base indent",
			src:   "py.def f(a,\nb):\n    return a\npy.f(1, 2)\n",
			want:  []string{"def f(a,\nb):\n    return a", "f(1, 2)"},
			lines: []uint32{1, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags := fragmentsOf(t, tt.src)
			if len(frags) != len(tt.want) {
				for _, f := range frags {
					t.Logf("line %d: %q", f.Line, f.Content)
				}
				t.Fatalf("got %d fragments, want %d", len(frags), len(tt.want))
			}
			for i := range tt.want {
				if frags[i].Content != tt.want[i] {
					t.Errorf("fragment %d content:\n%q\nwant:\n%q", i, frags[i].Content, tt.want[i])
				}
				if frags[i].Line != tt.lines[i] {
					t.Errorf("fragment %d line = %d, want %d", i, frags[i].Line, tt.lines[i])
				}
			}
		})
	}
}

func TestStartsUnit(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"def f():", true},
		{"class A:", true},
		{"if x > 1:", true},
		{"async def g():", true},
		{"@decorator", true},
		{"with open(p) as f:", true},
		{"match command:", true},
		{"match = 5", false},
		{"x = [1, 2,", true},
		{"x += (", true},
		{"x = [1, 2]", false},
		{"x == [", false},
		{"print(\"a:\")", false},
		{"label = \"a:\"", false},
		{"# comment:", false},
		{"total = 1  # sum:", false},
		{"lambda_x = 1", false},
		{"iffy = 2", false},
		{"for_each(x)", false},
		{"s = '(' ", false},
	}
	for _, tt := range tests {
		if got := StartsUnit(tt.in); got != tt.want {
			t.Errorf("StartsUnit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestKeywordWinsInsideOpenBracket(t *testing.T) {
	src := "py.if check(a,\n         b):\n    run()\npy.after()\n"
	frags := fragmentsOf(t, src)
	if len(frags) != 2 {
		t.Fatalf("got %d fragments", len(frags))
	}
	if frags[0].Content != "if check(a,\n         b):\n    run()" {
		t.Errorf("content = %q", frags[0].Content)
	}
}

func TestSingleLineKeepsIndentAfterPrefix(t *testing.T) {
	frags := fragmentsOf(t, "cpp.    printf(\"a\");\njs.\tconsole.log(1)\n  py.  x = 1\n")
	want := []string{"    printf(\"a\");", "\tconsole.log(1)", "  x = 1"}
	if len(frags) != len(want) {
		t.Fatalf("got %d fragments", len(frags))
	}
	for i, w := range want {
		if frags[i].Content != w {
			t.Errorf("fragment %d content = %q, want %q", i, frags[i].Content, w)
		}
	}
}

func TestUnitAtEOF(t *testing.T) {
	bag := diag.NewBag(0)
	frags := Fragments(lexer.SegmentString("py.items = [\n    1,\n    2,", nil), nil, diag.BagReporter{Bag: bag})
	if len(frags) != 1 || frags[0].Content != "items = [\n    1,\n    2," {
		t.Fatalf("unexpected fragments %+v", frags)
	}
	if frags[0].EndLine != 3 {
		t.Errorf("EndLine = %d", frags[0].EndLine)
	}
	items := bag.Items()
	if len(items) != 1 || items[0].Code != diag.MrgUnbalancedOpen || items[0].Line != 1 {
		t.Fatalf("unexpected diagnostics %+v", items)
	}
}

func TestMergeItemsKeepDirectivesAndStrays(t *testing.T) {
	src := "#name demo\npy.x = 1\nnonsense here\n"
	items := Merge(lexer.SegmentString(src, nil), nil, nil)
	kinds := []ItemKind{ItemDirective, ItemFragment, ItemUnparseable}
	if len(items) != len(kinds) {
		t.Fatalf("got %d items", len(items))
	}
	for i, k := range kinds {
		if items[i].Kind != k {
			t.Errorf("item %d kind = %d, want %d", i, items[i].Kind, k)
		}
	}
}
