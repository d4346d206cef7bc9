package program

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/source"
	"lf/internal/trace"
)

// Current schema version - increment when cachePayload format changes
const parseCacheSchemaVersion uint16 = 1

// ParseCache хранит модели чистых разборов по хэшу содержимого.
// Thread-safe for concurrent access.
type ParseCache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema     uint16
	Languages  string
	Directives []Directive
	Fragments  []Fragment
	SourceHash string
	Stats      Stats
}

// OpenParseCache opens the cache under $XDG_CACHE_HOME/<app>.
func OpenParseCache(app string) (*ParseCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenParseCacheAt(filepath.Join(base, app))
}

// OpenParseCacheAt opens the cache in dir.
func OpenParseCacheAt(dir string) (*ParseCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ParseCache{dir: dir}, nil
}

// Dir is the cache root.
func (c *ParseCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func cacheKey(f *source.File, reg *lang.Registry) string {
	h := sha256.New()
	h.Write(f.Hash[:])
	h.Write([]byte(strings.Join(reg.Tags(), ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ParseCache) pathFor(key string) string {
	return filepath.Join(c.dir, "parse", key+".mp")
}

func (c *ParseCache) put(key string, payload *cachePayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // после Rename файла уже нет

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, p)
}

func (c *ParseCache) get(key string, out *cachePayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return out.Schema == parseCacheSchemaVersion, nil
}

// DropAll invalidates the cache.
func (c *ParseCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// ParseCached is Parse backed by the cache. Only parses that produced no
// diagnostics are stored, so cached runs never hide a warning.
func ParseCached(ctx context.Context, c *ParseCache, fs *source.FileSet, id source.FileID, opts ParseOptions) (*Model, bool, error) {
	file := fs.Get(id)
	if c == nil || file == nil {
		m, err := Parse(ctx, fs, id, opts)
		return m, false, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = lang.Default()
	}
	key := cacheKey(file, reg)

	var payload cachePayload
	if ok, err := c.get(key, &payload); err == nil && ok && payload.Languages == strings.Join(reg.Tags(), ",") {
		trace.Point(ctx, trace.ScopePass, "parse-cache-hit", key[:16])
		m := &Model{
			Directives: payload.Directives,
			Fragments:  payload.Fragments,
			SourceHash: payload.SourceHash,
			Stats:      payload.Stats,
		}
		if m.Directives == nil {
			m.Directives = make([]Directive, 0)
		}
		if m.Fragments == nil {
			m.Fragments = make([]Fragment, 0)
		}
		if m.Stats.Languages == nil {
			m.Stats.Languages = make(map[string]int)
		}
		return m, true, nil
	}

	clean := true
	inner := opts.Reporter
	opts.Reporter = diag.ReporterFunc(func(d diag.Diagnostic) {
		clean = false
		if inner != nil {
			inner.Report(d)
		}
	})
	m, err := Parse(ctx, fs, id, opts)
	if err != nil || !clean {
		return m, false, err
	}
	// ошибка записи кэша не должна ломать сборку
	_ = c.put(key, &cachePayload{
		Schema:     parseCacheSchemaVersion,
		Languages:  strings.Join(reg.Tags(), ","),
		Directives: m.Directives,
		Fragments:  m.Fragments,
		SourceHash: m.SourceHash,
		Stats:      m.Stats,
	})
	return m, false, nil
}
