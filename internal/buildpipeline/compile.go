// Package buildpipeline orchestrates compilation of lf sources into documents,
// packages and bundles.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/program"
	"lf/internal/security"
	"lf/internal/source"
)

// CompileRequest configures the compilation of one or more sources.
type CompileRequest struct {
	Files          []string
	OutDir         string // "" - рядом с исходником
	NoPackage      bool
	Jobs           int // <= 0 - один файл за раз
	Registry       *lang.Registry
	Cache          *program.ParseCache
	Policy         security.Policy
	MaxDiagnostics int
	Progress       ProgressSink
	Compiler       string
	BuildTime      time.Time
}

// FileResult is the outcome for one source.
type FileResult struct {
	Source   string
	Display  string
	Document string
	Package  string
	Model    *program.Model
	Manifest *program.Manifest
	FileSet  *source.FileSet
	Bag      *diag.Bag
	Findings []security.Finding
	Cached   bool
	Timings  Timings
	Err      error
}

// CompileResult captures every file result and the summed stage timings.
type CompileResult struct {
	Files   []*FileResult
	Timings Timings
}

// Compile parses, screens, serializes and packages every file. Files are
// independent: a failure in one does not stop the others, and the returned
// error joins all failures.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if len(req.Files) == 0 {
		return result, fmt.Errorf("no input files")
	}
	if err := checkOutputs(req); err != nil {
		return result, err
	}
	if req.OutDir != "" {
		if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
			return result, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if req.BuildTime.IsZero() {
		req.BuildTime = time.Now()
	}

	names := DisplayNames(req.Files, "")
	emitQueued(req.Progress, names)

	result.Files = make([]*FileResult, len(req.Files))
	g := new(errgroup.Group)
	jobs := req.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	g.SetLimit(jobs)
	for i := range req.Files {
		g.Go(func() error {
			result.Files[i] = compileOne(ctx, req, req.Files[i], names[i])
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, fr := range result.Files {
		result.Timings.Merge(fr.Timings)
		if fr.Err != nil {
			errs = append(errs, fr.Err)
		}
	}
	return result, errors.Join(errs...)
}

// checkOutputs rejects inputs whose artifacts would overwrite each other.
func checkOutputs(req *CompileRequest) error {
	seen := make(map[string]string, len(req.Files))
	for _, f := range req.Files {
		if kind, ok := program.KindOf(f); !ok || kind != program.ArtifactSource {
			return fmt.Errorf("%s: expected a %s source", f, program.SourceExt)
		}
		out := outputPath(req.OutDir, program.DocumentPath(f))
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%s and %s both compile to %s", prev, f, out)
		}
		seen[out] = f
	}
	return nil
}

func outputPath(outDir, path string) string {
	if outDir == "" {
		return path
	}
	return filepath.Join(outDir, filepath.Base(path))
}

func compileOne(ctx context.Context, req *CompileRequest, path, name string) *FileResult {
	res := &FileResult{
		Source:  path,
		Display: name,
		FileSet: source.NewFileSet(),
		Bag:     diag.NewBag(req.MaxDiagnostics),
	}
	reporter := diag.BagReporter{Bag: res.Bag}
	fail := func(stage Stage, err error) *FileResult {
		res.Err = fmt.Errorf("%s: %w", name, err)
		emitFile(req.Progress, name, stage, StatusError, err, 0)
		return res
	}

	stage := time.Now()
	emitFile(req.Progress, name, StageParse, StatusWorking, nil, 0)
	art, err := program.Load(ctx, res.FileSet, path, program.LoadOptions{
		Parse: program.ParseOptions{Reporter: reporter, Registry: req.Registry},
		Cache: req.Cache,
	})
	if err != nil {
		return fail(StageParse, err)
	}
	res.Model, res.Cached = art.Model, art.Cached
	res.Timings.Set(StageParse, time.Since(stage))

	if req.Policy != security.PolicyOff {
		stage = time.Now()
		emitFile(req.Progress, name, StageScreen, StatusWorking, nil, 0)
		scr := security.NewScreener()
		res.Findings = scr.ScreenModel(ctx, res.Model)
		scr.Close()
		security.Report(reporter, req.Policy, res.Findings)
		res.Timings.Set(StageScreen, time.Since(stage))
		if err := security.Enforce(req.Policy, res.Findings); err != nil {
			return fail(StageScreen, err)
		}
	}

	stage = time.Now()
	emitFile(req.Progress, name, StageSerialize, StatusWorking, nil, 0)
	doc := program.Serialize(res.Model, program.SerializeOptions{
		Compiler:   req.Compiler,
		SourcePath: path,
		BuildTime:  req.BuildTime,
	})
	res.Document = outputPath(req.OutDir, program.DocumentPath(path))
	if err := program.WriteDocument(doc, res.Document); err != nil {
		return fail(StageSerialize, err)
	}
	res.Timings.Set(StageSerialize, time.Since(stage))

	if !req.NoPackage {
		stage = time.Now()
		emitFile(req.Progress, name, StagePackage, StatusWorking, nil, 0)
		res.Package = outputPath(req.OutDir, program.PackagePath(path))
		manifest, err := program.WritePackage(doc, res.Package, req.Registry)
		if err != nil {
			return fail(StagePackage, err)
		}
		res.Manifest = &manifest
		res.Timings.Set(StagePackage, time.Since(stage))
	}

	emitFile(req.Progress, name, StagePackage, StatusDone, nil, res.Timings.Sum(CompileStages...))
	return res
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageParse, Status: StatusQueued})
	}
}

func emitFile(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
