// Package toolchain locates the external compilers and interpreters fragments
// are executed with.
package toolchain

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Role of a tool in a language pipeline.
type Role string

const (
	RoleCompiler    Role = "compiler"
	RoleInterpreter Role = "interpreter"
	RoleRuntime     Role = "runtime"
)

// Tool describes one executable. Candidates are tried in order.
type Tool struct {
	Name        string
	Lang        string
	Role        Role
	Candidates  []string
	VersionArgs []string
}

// Known tools, keyed by Name.
var (
	Python = Tool{Name: "python", Lang: "py", Role: RoleInterpreter, Candidates: []string{"python3", "python"}, VersionArgs: []string{"--version"}}
	CXX    = Tool{Name: "g++", Lang: "cpp", Role: RoleCompiler, Candidates: []string{"g++", "clang++"}, VersionArgs: []string{"--version"}}
	Node   = Tool{Name: "node", Lang: "js", Role: RoleInterpreter, Candidates: []string{"node", "nodejs"}, VersionArgs: []string{"--version"}}
	Javac  = Tool{Name: "javac", Lang: "java", Role: RoleCompiler, Candidates: []string{"javac"}, VersionArgs: []string{"-version"}}
	Java   = Tool{Name: "java", Lang: "java", Role: RoleRuntime, Candidates: []string{"java"}, VersionArgs: []string{"-version"}}
	PHP    = Tool{Name: "php", Lang: "php", Role: RoleInterpreter, Candidates: []string{"php"}, VersionArgs: []string{"--version"}}
	Rustc  = Tool{Name: "rustc", Lang: "rust", Role: RoleCompiler, Candidates: []string{"rustc"}, VersionArgs: []string{"--version"}}
)

// All lists every known tool in language order.
func All() []Tool {
	return []Tool{Python, CXX, Node, Javac, Java, PHP, Rustc}
}

// ForLang returns the tools a language needs.
func ForLang(tag string) []Tool {
	var out []Tool
	for _, t := range All() {
		if t.Lang == tag {
			out = append(out, t)
		}
	}
	return out
}

// MissingError reports a tool that is not installed.
type MissingError struct {
	Tool     Tool
	Guidance string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s not found (tried %s)", e.Tool.Name, strings.Join(e.Tool.Candidates, ", "))
}

// ErrNotFound is matched by every MissingError.
var ErrNotFound = errors.New("toolchain not found")

func (e *MissingError) Is(target error) bool { return target == ErrNotFound }

// Locator resolves tools to paths and memoizes the result.
type Locator struct {
	mu        sync.Mutex
	overrides map[string]string
	cache     map[string]string
	lookPath  func(string) (string, error)
	goos      string
}

// NewLocator returns a locator; overrides map a tool name (or candidate) to a path.
func NewLocator(overrides map[string]string) *Locator {
	ov := make(map[string]string, len(overrides))
	for k, v := range overrides {
		ov[k] = v
	}
	return &Locator{
		overrides: ov,
		cache:     make(map[string]string),
		lookPath:  exec.LookPath,
		goos:      runtime.GOOS,
	}
}

// Find returns the path of the first available candidate, or a *MissingError.
func (l *Locator) Find(t Tool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.cache[t.Name]; ok {
		return p, nil
	}
	if p, ok := l.overrides[t.Name]; ok && p != "" {
		if resolved, err := l.lookPath(p); err == nil {
			l.cache[t.Name] = resolved
			return resolved, nil
		}
	}
	for _, c := range t.Candidates {
		if p, ok := l.overrides[c]; ok && p != "" {
			c = p
		}
		if resolved, err := l.lookPath(c); err == nil {
			l.cache[t.Name] = resolved
			return resolved, nil
		}
	}
	return "", &MissingError{Tool: t, Guidance: Guidance(t.Name, l.goos)}
}

// Overrides returns the configured overrides sorted by tool name.
func (l *Locator) Overrides() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.overrides))
	for k, v := range l.overrides {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Guidance returns the install hint for a tool on the given OS.
func Guidance(tool, goos string) string {
	hints, ok := guidance[tool]
	if !ok {
		return ""
	}
	if h, ok := hints[goos]; ok {
		return h
	}
	return hints[""]
}

var guidance = map[string]map[string]string{
	"python": {
		"linux":   "install with: sudo apt-get install -y python3",
		"darwin":  "install with: brew install python",
		"windows": "install with: winget install Python.Python.3",
		"":        "install Python 3 from https://www.python.org/downloads/",
	},
	"g++": {
		"linux":   "install with: sudo apt-get update && sudo apt-get install -y g++",
		"darwin":  "install with: xcode-select --install",
		"windows": "install MinGW-w64 (e.g. winget install MSYS2.MSYS2, then pacman -S mingw-w64-x86_64-gcc)",
		"":        "install a C++ compiler (g++ or clang++)",
	},
	"node": {
		"linux":   "install with: sudo apt-get install -y nodejs",
		"darwin":  "install with: brew install node",
		"windows": "install with: winget install OpenJS.NodeJS",
		"":        "install Node.js from https://nodejs.org/",
	},
	"javac": {
		"linux":   "install with: sudo apt-get install -y default-jdk",
		"darwin":  "install with: brew install openjdk",
		"windows": "install with: winget install Microsoft.OpenJDK.21",
		"":        "install a JDK",
	},
	"java": {
		"linux":   "install with: sudo apt-get install -y default-jre",
		"darwin":  "install with: brew install openjdk",
		"windows": "install with: winget install Microsoft.OpenJDK.21",
		"":        "install a Java runtime",
	},
	"php": {
		"linux":   "install with: sudo apt-get install -y php-cli",
		"darwin":  "install with: brew install php",
		"windows": "install with: winget install PHP.PHP",
		"":        "install PHP from https://www.php.net/downloads",
	},
	"rustc": {
		"":        "install with: curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh",
		"windows": "install rustup from https://rustup.rs/",
	},
}
