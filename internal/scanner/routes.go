package scanner

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// Route call names recognized in handler sources
const (
	CallRoute        = "Route"
	CallAPIRoute     = "APIRoute"
	CallPatternRoute = "PatternRoute"
)

// routeCall is a recognized route registration before doc comments are consulted
type routeCall struct {
	kind     string
	path     string
	resolved bool
	handler  string
	selector bool
	methods  []string
	line     int
}

// calleeName returns the last name of a call's function expression
func calleeName(call *ast.CallExpr) string {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name
	case *ast.SelectorExpr:
		return fn.Sel.Name
	}
	return ""
}

func isRouteCall(name string) bool {
	return name == CallRoute || name == CallAPIRoute || name == CallPatternRoute
}

// resolvePath evaluates a path argument built from string literals and
// whitelisted constants. Anything else is unresolvable.
func resolvePath(expr ast.Expr, constants map[string]string) (string, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return "", false
		}
		s, err := strconv.Unquote(e.Value)
		if err != nil {
			return "", false
		}
		return s, true
	case *ast.ParenExpr:
		return resolvePath(e.X, constants)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return "", false
		}
		left, ok := resolvePath(e.X, constants)
		if !ok {
			return "", false
		}
		right, ok := resolvePath(e.Y, constants)
		if !ok {
			return "", false
		}
		return left + right, true
	case *ast.Ident, *ast.SelectorExpr:
		value, ok := constants[types.ExprString(e)]
		return value, ok
	}
	return "", false
}

// resolveMethods evaluates the optional method arguments. No arguments means GET.
func resolveMethods(args []ast.Expr) ([]string, error) {
	var methods []string
	for _, arg := range args {
		if lit, ok := arg.(*ast.CompositeLit); ok {
			for _, elt := range lit.Elts {
				m, err := resolveMethod(elt)
				if err != nil {
					return nil, err
				}
				methods = append(methods, m)
			}
			continue
		}
		m, err := resolveMethod(arg)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	if len(methods) == 0 {
		return []string{"GET"}, nil
	}

	seen := map[string]bool{}
	unique := methods[:0]
	for _, m := range methods {
		if !seen[m] {
			seen[m] = true
			unique = append(unique, m)
		}
	}
	return unique, nil
}

func resolveMethod(expr ast.Expr) (string, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			if s, err := strconv.Unquote(e.Value); err == nil && s != "" {
				return strings.ToUpper(s), nil
			}
		}
	case *ast.SelectorExpr:
		// http.MethodGet and friends
		if name := e.Sel.Name; strings.HasPrefix(name, "Method") && len(name) > len("Method") {
			return strings.ToUpper(strings.TrimPrefix(name, "Method")), nil
		}
	}
	return "", fmt.Errorf("unsupported method expression %s", types.ExprString(expr))
}

// handlerName returns the function name a handler argument refers to
func handlerName(expr ast.Expr) (name string, selector bool) {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name, false
	case *ast.SelectorExpr:
		return e.Sel.Name, true
	case *ast.ParenExpr:
		return handlerName(e.X)
	case *ast.CallExpr:
		// wrapped handlers such as auth(h.GetUser) document the inner function
		if len(e.Args) == 1 {
			return handlerName(e.Args[0])
		}
	}
	return "", false
}

// findRouteCalls collects the route registrations of a file in source order.
// Calls whose path or methods cannot be resolved are reported as warnings.
func findRouteCalls(fset *token.FileSet, file *ast.File, constants map[string]string) ([]routeCall, []string) {
	var calls []routeCall
	var warnings []string

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		kind := calleeName(call)
		if !isRouteCall(kind) || len(call.Args) < 2 {
			return true
		}
		pos := fset.Position(call.Pos())

		rc := routeCall{kind: kind, line: pos.Line}
		rc.path, rc.resolved = resolvePath(call.Args[0], constants)
		if !rc.resolved {
			if kind != CallPatternRoute {
				warnings = append(warnings, fmt.Sprintf("%s:%d: skipping %s with unresolvable path %s",
					pos.Filename, pos.Line, kind, types.ExprString(call.Args[0])))
				return true
			}
			rc.path = types.ExprString(call.Args[0])
		}

		// pattern routes are always reported as ignored, never dropped
		rc.handler, rc.selector = handlerName(call.Args[1])
		if rc.handler == "" && kind != CallPatternRoute {
			warnings = append(warnings, fmt.Sprintf("%s:%d: skipping %s %s: handler is not a named function",
				pos.Filename, pos.Line, kind, rc.path))
			return true
		}

		methods, err := resolveMethods(call.Args[2:])
		if err != nil && kind == CallPatternRoute {
			methods = []string{"GET"}
		} else if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s:%d: skipping %s %s: %v", pos.Filename, pos.Line, kind, rc.path, err))
			return true
		}
		rc.methods = methods

		calls = append(calls, rc)
		return true
	})

	return calls, warnings
}
