package security

import (
	"regexp"
	"strings"
)

// rule is one regular-expression check.
type rule struct {
	id    string
	re    *regexp.Regexp
	level Level
}

func mustRules(level Level, pairs ...string) []rule {
	out := make([]rule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, rule{id: pairs[i], re: regexp.MustCompile(`(?i)` + pairs[i+1]), level: level})
	}
	return out
}

// genericRules apply to every language.
var genericRules = mustRules(LevelHigh,
	"import-os", `\bimport\b.*\bos\b`,
	"exec", `\bexec\b`,
	"eval", `\beval\b`,
	"open-parent-path", `\bopen\b\s*\(\s*[^)]*\.\./`,
	"dunder", `\b__\w+__\b`,
	"importlib", `\bimportlib\b`,
	"subprocess", `\bsubprocess\b`,
	"os-access", `\bos\.`,
	"sys-access", `\bsys\.`,
	"shutil", `\bshutil\b`,
	"requests", `\brequests\b`,
	"socket", `\bsocket\b`,
	"httplib", `\bhttplib\b`,
	"ftplib", `\bftplib\b`,
	"xmlrpc", `\bxmlrpc\b`,
	"pickle", `\bc?pickle\b`,
	"shelve", `\bshelve\b`,
	"marshal", `\bmarshal\b`,
	"webbrowser", `\bwebbrowser\b`,
	"ssl", `\bssl\b`,
	"compression", `\b(zlib|bz2|lzma|zipfile|tarfile)\b`,
	"codecs", `\bcodecs\b`,
)

// languageRules are the guest-language checks keyed by tag.
var languageRules = map[string][]rule{
	"js": mustRules(LevelHigh,
		"js.child-process", `require\(\s*["']child_process["']\s*\)`,
		"js.fs", `require\(\s*["']fs["']\s*\)`,
		"js.network", `require\(\s*["'](http|https|net|dgram|tls)["']\s*\)`,
		"js.cluster", `require\(\s*["'](cluster|worker_threads)["']\s*\)`,
		"js.eval", `\beval\s*\(`,
		"js.function-constructor", `\bFunction\s*\(`,
		"js.dynamic-import", `\bimport\s*\(`,
	),
	"cpp": mustRules(LevelHigh,
		"cpp.system-include", `#include\s*<system>`,
		"cpp.system", `\bsystem\s*\(`,
		"cpp.exec", `\bexec\w*\s*\(`,
		"cpp.popen", `\bpopen\s*\(`,
		"cpp.fork", `\bfork\s*\(`,
		"cpp.winexec", `\bWinExec\s*\(`,
		"cpp.create-process", `\bCreateProcess`,
		"cpp.shell-execute", `\bShellExecute`,
		"cpp.raw-socket", `\bsocket\s*\(\s*(AF_INET|AF_INET6|PF_INET)`,
	),
	"java": mustRules(LevelHigh,
		"java.runtime-exec", `Runtime\s*\.\s*getRuntime\s*\(\s*\)\s*\.\s*exec`,
		"java.process-builder", `\bProcessBuilder\b`,
		"java.socket", `\bnew\s+(Server)?Socket\s*\(`,
		"java.reflection", `\bClass\s*\.\s*forName\s*\(`,
		"java.script-engine", `\bScriptEngineManager\b`,
	),
	"php": mustRules(LevelHigh,
		"php.shell", `\b(shell_exec|system|passthru|proc_open|popen|pcntl_exec)\s*\(`,
		"php.backtick", "`[^`]*`",
		"php.eval", `\b(eval|assert|create_function)\s*\(`,
		"php.socket", `\b(fsockopen|socket_create|stream_socket_client)\s*\(`,
		"php.include-remote", `\b(include|require)(_once)?\s*\(?\s*["']https?://`,
	),
	"rust": mustRules(LevelHigh,
		"rust.command", `\bstd::process::Command\b|\bCommand::new\s*\(`,
		"rust.unsafe", `\bunsafe\s*\{`,
		"rust.socket", `\b(TcpStream|TcpListener|UdpSocket)\s*::`,
		"rust.ffi", `\bextern\s+"C"`,
	),
}

// Python layer 2 lists.
var (
	dangerousModules = map[string]bool{
		"os": true, "subprocess": true, "sys": true, "shutil": true,
		"socket": true, "urllib": true, "requests": true,
	}
	dangerousCalls = map[string]bool{
		"exec": true, "eval": true, "compile": true, "open": true, "__import__": true,
	}
)

// dangerousModule matches the module or its top-level package.
func dangerousModule(name string) bool {
	name = strings.TrimSpace(name)
	if dangerousModules[name] {
		return true
	}
	if top, _, ok := strings.Cut(name, "."); ok {
		return dangerousModules[top]
	}
	return false
}

// Rules lists every rule id known to the screener, for `analyze` and docs.
func Rules(tag string) []string {
	out := make([]string, 0, len(genericRules))
	for _, r := range genericRules {
		out = append(out, r.id)
	}
	for _, r := range languageRules[tag] {
		out = append(out, r.id)
	}
	return out
}
