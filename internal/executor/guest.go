package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"lf/internal/toolchain"
)

// guest runs fragments through an external toolchain.
type guest struct {
	env    *Env
	recipe *langRecipe
}

func newGuest(env *Env, recipe *langRecipe) *guest {
	return &guest{env: env, recipe: recipe}
}

// Render returns the program the fragment would be compiled as.
func (g *guest) Render(req *Request) string {
	decls := declarations(req.State, g.recipe.reserved, g.recipe.declare)
	return g.recipe.wrap(req.Content, decls)
}

func (g *guest) locate(req *Request, t *toolchain.Tool) (string, error) {
	if t == nil {
		return "", nil
	}
	path, err := g.env.Locator.Find(*t)
	if err != nil {
		ee := execErr(ErrToolchainMissing, req, t.Name, err)
		var me *toolchain.MissingError
		if errors.As(err, &me) {
			ee.Detail = me.Guidance
		}
		return "", ee
	}
	return path, nil
}

func (g *guest) Execute(ctx context.Context, req *Request) (*Result, error) {
	recipe := g.recipe
	compilerPath, err := g.locate(req, recipe.compiler)
	if err != nil {
		return nil, err
	}
	runnerPath, err := g.locate(req, recipe.runner)
	if err != nil {
		return nil, err
	}

	dir, h, err := g.env.Janitor.TempDir(recipe.tag + "-*")
	if err != nil {
		return nil, execErr(ErrRuntime, req, "", err)
	}
	defer func() { _ = g.env.Janitor.Release(h) }()

	src := filepath.Join(dir, recipe.srcName)
	if err := os.WriteFile(src, []byte(g.Render(req)), 0o600); err != nil {
		return nil, execErr(ErrRuntime, req, "", err)
	}

	res := &Result{}
	to := g.env.timeouts(recipe.tag)
	bin := ""
	if recipe.binName != "" {
		bin = filepath.Join(dir, recipe.binName)
	}

	if recipe.compiler != nil {
		out, err := run(ctx, command{
			path:    compilerPath,
			args:    recipe.compileArgs(src, bin),
			dir:     dir,
			timeout: to.Compile,
		})
		res.Compile = out.elapsed
		if err != nil {
			ee := execErr(classify(err, ErrCompile), req, recipe.compiler.Name, err)
			ee.Detail = trimCompileErrors(out.stderr+out.stdout, req.Line, src, recipe.srcName)
			return nil, ee
		}
	}

	path, args, tool := bin, []string(nil), recipe.tag
	if recipe.runner != nil {
		path, args, tool = runnerPath, recipe.runArgs(dir, src), recipe.runner.Name
	}
	out, err := run(ctx, command{
		path:    path,
		args:    args,
		timeout: to.Run,
		stdout:  req.Stdout,
	})
	res.Run = out.elapsed
	res.Stderr = strings.TrimSpace(out.stderr)
	if err != nil {
		ee := execErr(classify(err, ErrRuntime), req, tool, err)
		ee.Detail = replaceLocations(res.Stderr, req.Line, src)
		return nil, ee
	}
	return res, nil
}
