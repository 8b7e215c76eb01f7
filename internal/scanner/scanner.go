package scanner

import (
	"context"
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/moamenhredeen/oasync/internal/models"
	"golang.org/x/sync/errgroup"
)

// Options configures a handler scan
type Options struct {
	Root          string
	Ignore        []string
	StartMarker   string
	EndMarker     string
	IgnoreMarker  string
	PathConstants map[string]string
	Workers       int
	Logger        *slog.Logger
}

// FileOutcome records what happened to a single handler file
type FileOutcome struct {
	File    string
	Routes  int
	Skipped bool
	Reason  string
	Err     error
}

// Result is the ordered output of a scan
type Result struct {
	Candidates []models.Candidate
	Ignored    []models.IgnoredEndpoint
	Files      []FileOutcome
	Warnings   []string
}

type sourceFile struct {
	path string
	rel  string
	ast  *ast.File
	err  error
}

type funcRef struct {
	decl *ast.FuncDecl
	file string
	line int
}

// Scan parses every Go file under opts.Root and collects route registrations.
// Files are parsed concurrently but the result is ordered by (path, method),
// so it never depends on traversal or scheduling order.
func Scan(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger

	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("handlers root %s: %w", opts.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("handlers root %s is not a directory", opts.Root)
	}

	globs, err := compileGlobs(opts.Ignore)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	files, err := collectFiles(opts.Root, globs, result)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	if err := parseFiles(ctx, fset, files, opts.Workers); err != nil {
		return nil, err
	}

	// Handler lookup tables: same directory first, then the whole tree
	byDir := map[string]map[string][]funcRef{}
	global := map[string][]funcRef{}
	ignoredFiles := map[string]bool{}
	for _, f := range files {
		if f.err != nil {
			continue
		}
		ignoredFiles[f.path] = hasMarker(docLines(f.ast.Doc), opts.IgnoreMarker)
		dir := filepath.Dir(f.path)
		if byDir[dir] == nil {
			byDir[dir] = map[string][]funcRef{}
		}
		for _, decl := range f.ast.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			ref := funcRef{decl: fd, file: f.path, line: fset.Position(fd.Pos()).Line}
			byDir[dir][fd.Name.Name] = append(byDir[dir][fd.Name.Name], ref)
			global[fd.Name.Name] = append(global[fd.Name.Name], ref)
		}
	}

	for _, f := range files {
		outcome := FileOutcome{File: f.rel}
		if f.err != nil {
			scanErr := &RecoverableScanError{File: f.path, Err: f.err}
			outcome.Skipped = true
			outcome.Reason = "parse error"
			outcome.Err = scanErr
			result.Warnings = append(result.Warnings, scanErr.Error())
			logger.Warn("skipping unparsable handler file", "file", f.path, "error", f.err)
			result.Files = append(result.Files, outcome)
			continue
		}

		calls, warnings := findRouteCalls(fset, f.ast, opts.PathConstants)
		for _, w := range warnings {
			logger.Warn(w)
		}
		result.Warnings = append(result.Warnings, warnings...)

		for _, call := range calls {
			ref, found := lookupHandler(byDir[filepath.Dir(f.path)], global, call)
			if !found {
				logger.Debug("handler declaration not found", "file", f.path, "handler", call.handler)
			}
			// the file marker of either the registering file or the handler's file applies
			fileIgnored := ignoredFiles[f.path] || (found && ignoredFiles[ref.file])
			n, err := opts.classify(result, f, call, ref, found, fileIgnored)
			if err != nil {
				return nil, err
			}
			outcome.Routes += n
		}
		result.Files = append(result.Files, outcome)
	}

	sortResult(result)
	logger.Debug("scan complete", "root", opts.Root, "files", len(result.Files),
		"candidates", len(result.Candidates), "ignored", len(result.Ignored))
	return result, nil
}

// classify turns one route call into candidates or ignored entries, one per method.
// Records point at the handler declaration when it was found, else at the call.
func (opts Options) classify(result *Result, f *sourceFile, call routeCall, ref funcRef, found, fileIgnored bool) (int, error) {
	function := call.handler
	source := filepath.ToSlash(f.path)
	line := call.line
	var doc []string
	if found {
		function = qualifiedName(ref.decl)
		doc = docLines(ref.decl.Doc)
		source = filepath.ToSlash(ref.file)
		line = ref.line
	}

	reason := ""
	switch {
	case call.kind == CallPatternRoute:
		reason = models.ReasonPatternRoute
	case fileIgnored:
		reason = models.ReasonFileMarker
	case hasMarker(doc, opts.IgnoreMarker):
		reason = models.ReasonFunctionMarker
	}

	if reason != "" {
		for _, method := range call.methods {
			result.Ignored = append(result.Ignored, models.IgnoredEndpoint{
				Path:         call.path,
				Method:       method,
				SourceFile:   source,
				Line:         line,
				FunctionName: function,
				Reason:       reason,
			})
		}
		return len(call.methods), nil
	}

	meta, err := extractBlock(doc, opts.StartMarker, opts.EndMarker)
	if err != nil {
		return 0, &FatalMetadataError{File: source, Function: function, Line: line, Err: err}
	}

	var block map[string]any
	var examples []any
	if meta != nil {
		block = meta.block
		examples = meta.examples
		for _, key := range meta.dropped {
			msg := fmt.Sprintf("%s:%d: dropping unsupported key %q from metadata block of %s", source, line, key, function)
			result.Warnings = append(result.Warnings, msg)
			opts.Logger.Warn(msg)
		}
	}

	for _, method := range call.methods {
		result.Candidates = append(result.Candidates, models.Candidate{
			Path:         call.path,
			Method:       method,
			SourceFile:   source,
			Line:         line,
			FunctionName: function,
			Block:        block,
			Examples:     examples,
		})
	}
	return len(call.methods), nil
}

func lookupHandler(local map[string][]funcRef, global map[string][]funcRef, call routeCall) (funcRef, bool) {
	for _, refs := range [][]funcRef{local[call.handler], global[call.handler]} {
		if len(refs) == 0 {
			continue
		}
		// A selector prefers methods, a bare identifier prefers functions
		for _, ref := range refs {
			if (ref.decl.Recv != nil) == call.selector {
				return ref, true
			}
		}
		return refs[0], true
	}
	return funcRef{}, false
}

func qualifiedName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	recv := fd.Recv.List[0].Type
	if star, ok := recv.(*ast.StarExpr); ok {
		recv = star.X
	}
	switch t := recv.(type) {
	case *ast.Ident:
		return t.Name + "." + fd.Name.Name
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name + "." + fd.Name.Name
		}
	}
	return fd.Name.Name
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore glob %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func ignoredByGlob(globs []glob.Glob, rel string) bool {
	base := filepath.Base(rel)
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// collectFiles lists candidate files sorted by relative path
func collectFiles(root string, globs []glob.Glob, result *Result) ([]*sourceFile, error) {
	var files []*sourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ignoredByGlob(globs, rel) {
			result.Files = append(result.Files, FileOutcome{File: rel, Skipped: true, Reason: "matched ignore glob"})
			return nil
		}
		files = append(files, &sourceFile{path: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk handlers root: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}

// parseFiles parses files concurrently. Parse failures are stored on the file, not returned.
func parseFiles(ctx context.Context, fset *token.FileSet, files []*sourceFile, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f.ast, f.err = goparser.ParseFile(fset, f.path, nil, goparser.ParseComments)
			return nil
		})
	}
	return g.Wait()
}

func sortResult(r *Result) {
	sort.SliceStable(r.Candidates, func(i, j int) bool {
		a, b := r.Candidates[i], r.Candidates[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		return a.Line < b.Line
	})
	sort.SliceStable(r.Ignored, func(i, j int) bool {
		a, b := r.Ignored[i], r.Ignored[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		return a.Line < b.Line
	})
	sort.SliceStable(r.Files, func(i, j int) bool { return r.Files[i].File < r.Files[j].File })
}
