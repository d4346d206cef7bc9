package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB - ограничение для тестового корпуса
)

var builtinSeeds = []string{
	"",
	"py.x = 1\n",
	"#name demo\n#security strict\npy.print('hi')\n",
	"py.def f(a):\n    return a\ncpp.printf(\"%d\\n\", x);\n",
	"py.data = {\n    'a': [1, 2],\n}\njs.console.log(data)\n",
	"#name \"unterminated\n",
	"#python_import os.path\n#module 9bad\n",
	"py.if x:\npy.    y = 1\nelse:\n    y = 2\n",
	"\ufeffpy.s = \"caf\u00e9\"\r\nphp.echo $s;\r\n",
	"   \t\n// comment\n# not a directive\nplain text\n",
}

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	for _, s := range builtinSeeds {
		f.Add([]byte(s))
	}
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".lf" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
