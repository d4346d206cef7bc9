package security

import (
	"fmt"

	"fortio.org/safecast"
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// pyParser wraps a tree-sitter parser configured for Python.
type pyParser struct {
	parser *sitter.Parser
}

func newPyParser() (*pyParser, error) {
	p := sitter.NewParser()
	if err := p.SetLanguage(sitter.NewLanguage(python.Language())); err != nil {
		p.Close()
		return nil, fmt.Errorf("security: python grammar: %w", err)
	}
	return &pyParser{parser: p}, nil
}

func (p *pyParser) Close() {
	if p == nil || p.parser == nil {
		return
	}
	p.parser.Close()
}

// screen walks the syntax tree; base is the source line of the fragment's first line.
func (p *pyParser) screen(code string, base uint32) []Finding {
	src := []byte(code)
	tree := p.parser.Parse(src, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	var out []Finding
	add := func(kind Kind, node *sitter.Node, rule, detail string) {
		out = append(out, Finding{
			Kind:   kind,
			Level:  LevelHigh,
			Rule:   rule,
			Line:   base + rowOf(node),
			Lang:   "py",
			Detail: detail,
		})
	}

	if root.HasError() {
		n := firstErrorNode(root)
		if n == nil {
			n = root
		}
		out = append(out, Finding{
			Kind:  KindSyntax,
			Level: LevelMedium,
			Rule:  "py.syntax",
			Line:  base + rowOf(n),
			Lang:  "py",
		})
	}

	walkNodes(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "import_statement":
			for i := uint(0); i < node.NamedChildCount(); i++ {
				name := importedName(node.NamedChild(i), src)
				if dangerousModule(name) {
					add(KindImport, node, "py.import", name)
				}
			}
		case "import_from_statement":
			if mod := node.ChildByFieldName("module_name"); mod != nil {
				name := mod.Utf8Text(src)
				if dangerousModule(name) {
					add(KindImport, node, "py.import", name)
				}
			}
		case "call":
			fn := node.ChildByFieldName("function")
			if fn != nil && fn.Kind() == "identifier" {
				if name := fn.Utf8Text(src); dangerousCalls[name] {
					add(KindCall, node, "py.call", name)
				}
			}
		}
	})
	return out
}

// importedName returns the module of `import a.b` or `import a.b as c`.
func importedName(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "aliased_import" {
		if n := node.ChildByFieldName("name"); n != nil {
			return n.Utf8Text(src)
		}
	}
	return node.Utf8Text(src)
}

func rowOf(node *sitter.Node) uint32 {
	row, err := safecast.Conv[uint32](node.StartPosition().Row)
	if err != nil {
		return 0
	}
	return row
}

func firstErrorNode(root *sitter.Node) *sitter.Node {
	var best *sitter.Node
	walkNodes(root, func(node *sitter.Node) {
		if !node.IsError() && !node.IsMissing() {
			return
		}
		if best == nil || node.StartByte() < best.StartByte() {
			best = node
		}
	})
	return best
}

func walkNodes(root *sitter.Node, visit func(node *sitter.Node)) {
	if root == nil {
		return
	}
	visit(root)
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		walkNodes(child, visit)
	}
}
