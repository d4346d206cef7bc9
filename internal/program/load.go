package program

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"lf/internal/diag"
	"lf/internal/source"
)

// ArtifactKind is what a path on the command line points at.
type ArtifactKind uint8

const (
	ArtifactSource   ArtifactKind = iota // .lf
	ArtifactDocument                     // .lsf
	ArtifactPackage                      // .lfp
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactSource:
		return "source"
	case ArtifactDocument:
		return "document"
	case ArtifactPackage:
		return "package"
	}
	return "unknown"
}

// Extensions of the three artifact kinds.
const (
	SourceExt   = ".lf"
	DocumentExt = ".lsf"
	PackageExt  = ".lfp"
)

// KindOf classifies path by its extension.
func KindOf(path string) (ArtifactKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case SourceExt:
		return ArtifactSource, true
	case DocumentExt:
		return ArtifactDocument, true
	case PackageExt:
		return ArtifactPackage, true
	}
	return 0, false
}

// DocumentPath is the default .lsf output path for a source file.
func DocumentPath(src string) string { return replaceExt(src, DocumentExt) }

// PackagePath is the default .lfp output path for a source file.
func PackagePath(src string) string { return replaceExt(src, PackageExt) }

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Artifact is a loaded program together with where it came from.
type Artifact struct {
	Kind     ArtifactKind
	Path     string
	Model    *Model
	Document *Document // nil for sources
	Package  *Package  // only for packages
	FileSet  *source.FileSet
	FileID   source.FileID // valid for sources
	Cached   bool
}

// LoadOptions configures Load.
type LoadOptions struct {
	Parse ParseOptions
	Cache *ParseCache
}

// Load reads a source, document or package depending on the extension.
func Load(ctx context.Context, fs *source.FileSet, path string, opts LoadOptions) (*Artifact, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, buildErr("load", path, diag.PkgBadFormat,
			fmt.Errorf("unknown file type %q (expected %s, %s or %s)", filepath.Ext(path), SourceExt, DocumentExt, PackageExt))
	}
	if fs == nil {
		fs = source.NewFileSet()
	}
	art := &Artifact{Kind: kind, Path: path, FileSet: fs}
	switch kind {
	case ArtifactSource:
		id, err := fs.Load(path)
		if err != nil {
			return nil, buildErr("load", path, diag.PkgReadFailed, err)
		}
		m, cached, err := ParseCached(ctx, opts.Cache, fs, id, opts.Parse)
		if err != nil {
			return nil, err
		}
		art.Model, art.FileID, art.Cached = m, id, cached
	case ArtifactDocument:
		doc, err := ReadDocument(path)
		if err != nil {
			return nil, err
		}
		art.Document, art.Model = doc, doc.Program
	case ArtifactPackage:
		pkg, err := OpenPackage(path)
		if err != nil {
			return nil, err
		}
		art.Package, art.Document, art.Model = pkg, pkg.Document, pkg.Model()
	}
	return art, nil
}

// Name is the program name, falling back to the file base name.
func (a *Artifact) Name() string {
	if n := a.Model.Name(); n != "" {
		return n
	}
	base := filepath.Base(a.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
