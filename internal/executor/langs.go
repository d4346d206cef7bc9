package executor

import (
	"runtime"
	"strings"

	"lf/internal/toolchain"
)

// langRecipe describes how one guest language is wrapped, built and run.
type langRecipe struct {
	tag      string
	srcName  string
	binName  string
	compiler *toolchain.Tool
	runner   *toolchain.Tool // nil - запускается собранный бинарник
	reserved map[string]bool
	declare  declarer
	wrap     func(code string, decls []string) string

	compileArgs func(src, bin string) []string
	runArgs     func(dir, src string) []string
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func toolPtr(t toolchain.Tool) *toolchain.Tool { return &t }

var cppRecipe = &langRecipe{
	tag:      "cpp",
	srcName:  "main.cpp",
	binName:  exeName("main"),
	compiler: toolPtr(toolchain.CXX),
	reserved: cppReserved,
	declare:  declareCPP,
	wrap:     wrapCPP,
	compileArgs: func(src, bin string) []string {
		return []string{src, "-o", bin, "-std=c++17", "-O2"}
	},
}

var javaRecipe = &langRecipe{
	tag:      "java",
	srcName:  "Main.java",
	compiler: toolPtr(toolchain.Javac),
	runner:   toolPtr(toolchain.Java),
	reserved: javaReserved,
	declare:  declareJava,
	wrap:     wrapJava,
	compileArgs: func(src, _ string) []string {
		return []string{"-encoding", "UTF-8", src}
	},
	runArgs: func(dir, _ string) []string {
		return []string{"-cp", dir, "Main"}
	},
}

var rustRecipe = &langRecipe{
	tag:      "rust",
	srcName:  "main.rs",
	binName:  exeName("main"),
	compiler: toolPtr(toolchain.Rustc),
	reserved: rustReserved,
	declare:  declareRust,
	wrap:     wrapRust,
	compileArgs: func(src, bin string) []string {
		return []string{src, "-o", bin, "--edition", "2021"}
	},
}

var jsRecipe = &langRecipe{
	tag:      "js",
	srcName:  "main.js",
	runner:   toolPtr(toolchain.Node),
	reserved: jsReserved,
	declare:  declareJS,
	wrap:     wrapJS,
	runArgs: func(_, src string) []string {
		return []string{src}
	},
}

var phpRecipe = &langRecipe{
	tag:      "php",
	srcName:  "main.php",
	runner:   toolPtr(toolchain.PHP),
	reserved: phpReserved,
	declare:  declarePHP,
	wrap:     wrapPHP,
	runArgs: func(_, src string) []string {
		return []string{src}
	},
}

func indent(code, prefix string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// hoist moves lines starting with one of prefixes out of the body.
func hoist(code string, prefixes ...string) (head []string, body string) {
	var rest []string
	for _, l := range strings.Split(code, "\n") {
		t := strings.TrimSpace(l)
		moved := false
		for _, p := range prefixes {
			if strings.HasPrefix(t, p) {
				head = append(head, t)
				moved = true
				break
			}
		}
		if !moved {
			rest = append(rest, l)
		}
	}
	return head, strings.Join(rest, "\n")
}

var cppHeaders = []string{
	"#include <iostream>",
	"#include <string>",
	"#include <vector>",
	"#include <map>",
	"#include <cmath>",
	"#include <cstdio>",
	"#include <cstdlib>",
}

func wrapCPP(code string, decls []string) string {
	includes, body := hoist(code, "#include")
	var b strings.Builder
	for _, h := range append(append([]string(nil), cppHeaders...), includes...) {
		b.WriteString(h + "\n")
	}
	b.WriteString("\nusing namespace std;\n\n")
	if len(decls) > 0 {
		b.WriteString("// shared state\n" + strings.Join(decls, "\n") + "\n\n")
	}
	b.WriteString("int main() {\n")
	b.WriteString(indent(strings.TrimSpace(body), "    ") + "\n")
	b.WriteString("    return 0;\n}\n")
	return b.String()
}

func wrapJava(code string, decls []string) string {
	imports, body := hoist(code, "import ")
	var b strings.Builder
	for _, imp := range imports {
		b.WriteString(imp + "\n")
	}
	b.WriteString("public class Main {\n")
	if len(decls) > 0 {
		b.WriteString(indent(strings.Join(decls, "\n"), "    ") + "\n\n")
	}
	b.WriteString("    public static void main(String[] args) throws Exception {\n")
	b.WriteString(indent(strings.TrimSpace(body), "        ") + "\n")
	b.WriteString("    }\n}\n")
	return b.String()
}

func wrapRust(code string, decls []string) string {
	uses, body := hoist(code, "use ")
	var b strings.Builder
	b.WriteString("#![allow(unused)]\n")
	for _, u := range uses {
		b.WriteString(u + "\n")
	}
	b.WriteString("fn main() {\n")
	if len(decls) > 0 {
		b.WriteString(indent(strings.Join(decls, "\n"), "    ") + "\n")
	}
	b.WriteString(indent(strings.TrimSpace(body), "    ") + "\n")
	b.WriteString("}\n")
	return b.String()
}

func wrapJS(code string, decls []string) string {
	var b strings.Builder
	if len(decls) > 0 {
		b.WriteString("// shared state\n" + strings.Join(decls, "\n") + "\n")
	}
	// блок, чтобы let/const фрагмента могли затенять общие имена
	b.WriteString("{\n" + strings.TrimSpace(code) + "\n}\n")
	return b.String()
}

func wrapPHP(code string, decls []string) string {
	body := strings.TrimSpace(code)
	body = strings.TrimPrefix(body, "<?php")
	body = strings.TrimSuffix(body, "?>")
	var b strings.Builder
	b.WriteString("<?php\n")
	if len(decls) > 0 {
		b.WriteString(strings.Join(decls, "\n") + "\n")
	}
	b.WriteString(strings.TrimSpace(body) + "\n?>\n")
	return b.String()
}
