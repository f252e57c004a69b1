package vectorfield

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

// unary lists the functions a formula may call. Nothing else is callable.
var unary = map[string]func(float64) (float64, error){
	"sin": func(x float64) (float64, error) { return math.Sin(x), nil },
	"cos": func(x float64) (float64, error) { return math.Cos(x), nil },
	"tan": func(x float64) (float64, error) { return math.Tan(x), nil },
	"exp": func(x float64) (float64, error) { return math.Exp(x), nil },
	"sqrt": func(x float64) (float64, error) {
		if x < 0 {
			return 0, fmt.Errorf("sqrt of negative value %g", x)
		}
		return math.Sqrt(x), nil
	},
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var qualified = regexp.MustCompile(`\bnp\.([A-Za-z_][A-Za-z0-9_]*)`)

// Formula is one compiled component of a vector field.
type Formula struct {
	component string
	source    string
	program   *vm.Program
}

// Compile parses src once. Only X, Y, pi, e and the allow-listed functions
// may appear, and the result must be numeric.
func Compile(component, src string) (*Formula, error) {
	fail := func(reason string) error {
		return &dynamo.ExpressionError{Component: component, Source: src, Reason: reason}
	}

	if strings.TrimSpace(src) == "" {
		return nil, fail("empty expression")
	}

	rewritten, err := stripQualifier(src)
	if err != nil {
		return nil, fail(err.Error())
	}

	tree, err := parser.Parse(rewritten)
	if err != nil {
		return nil, fail(firstLine(err.Error()))
	}
	g := &grammar{}
	ast.Walk(&tree.Node, g)
	if g.err != "" {
		return nil, fail(g.err)
	}

	program, err := expr.Compile(rewritten, options()...)
	if err != nil {
		return nil, fail(firstLine(err.Error()))
	}
	return &Formula{component: component, source: src, program: program}, nil
}

// Eval evaluates the formula at (x, y). Non-finite results are errors.
func (f *Formula) Eval(x, y float64) (float64, error) {
	return f.eval(newEnv(x, y))
}

func (f *Formula) eval(env map[string]any) (float64, error) {
	out, err := expr.Run(f.program, env)
	if err != nil {
		return 0, &dynamo.ExpressionError{Component: f.component, Source: f.source, Reason: firstLine(err.Error())}
	}
	v, ok := out.(float64)
	if !ok {
		return 0, &dynamo.ExpressionError{Component: f.component, Source: f.source, Reason: fmt.Sprintf("result is %T, not a number", out)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &dynamo.ExpressionError{
			Component: f.component,
			Source:    f.source,
			Reason:    fmt.Sprintf("non-finite result %g at X=%g, Y=%g", v, env["X"], env["Y"]),
		}
	}
	return v, nil
}

func (f *Formula) Source() string { return f.source }

var (
	unaryOps  = map[string]bool{"+": true, "-": true}
	binaryOps = map[string]bool{"+": true, "-": true, "*": true, "/": true, "**": true, "^": true}
)

// grammar accepts numbers, X, Y, the constants, signs, arithmetic operators
// and one-argument calls to the allow-listed functions. It records the first
// node outside that set.
type grammar struct {
	err string
}

func (g *grammar) Visit(node *ast.Node) {
	if g.err != "" {
		return
	}
	switch n := (*node).(type) {
	case *ast.IntegerNode, *ast.FloatNode:
	case *ast.IdentifierNode:
		if !allowedName(n.Value) {
			g.err = fmt.Sprintf("unknown name %q", n.Value)
		}
	case *ast.UnaryNode:
		if !unaryOps[n.Operator] {
			g.err = fmt.Sprintf("operator %q is not allowed", n.Operator)
		}
	case *ast.BinaryNode:
		if !binaryOps[n.Operator] {
			g.err = fmt.Sprintf("operator %q is not allowed", n.Operator)
		}
	case *ast.CallNode:
		id, ok := n.Callee.(*ast.IdentifierNode)
		switch {
		case !ok:
			g.err = "only named functions may be called"
		case unary[id.Value] == nil:
			g.err = fmt.Sprintf("%s is not an allowed function", id.Value)
		case len(n.Arguments) != 1:
			g.err = fmt.Sprintf("%s takes exactly one argument", id.Value)
		}
	default:
		g.err = fmt.Sprintf("%T is not allowed in a formula", n)
	}
}

func allowedName(name string) bool {
	if name == "X" || name == "Y" {
		return true
	}
	if _, ok := constants[name]; ok {
		return true
	}
	return unary[name] != nil
}

func options() []expr.Option {
	env := newEnv(0, 0)
	opts := []expr.Option{
		expr.Env(env),
		expr.AsFloat64(),
		expr.DisableAllBuiltins(),
	}
	for name, fn := range unary {
		opts = append(opts, expr.Function(name, wrap(name, fn), new(func(float64) float64)))
	}
	return opts
}

func newEnv(x, y float64) map[string]any {
	env := make(map[string]any, 2+len(constants))
	for k, v := range constants {
		env[k] = v
	}
	env["X"] = x
	env["Y"] = y
	return env
}

func wrap(name string, fn func(float64) (float64, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes exactly one argument", name)
		}
		x, ok := toFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("%s: argument is %T, not a number", name, params[0])
		}
		return fn(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// stripQualifier turns np.sin into sin for allow-listed names and rejects
// np.<anything else>.
func stripQualifier(src string) (string, error) {
	var bad string
	out := qualified.ReplaceAllStringFunc(src, func(m string) string {
		name := m[len("np."):]
		if _, ok := unary[name]; ok {
			return name
		}
		if _, ok := constants[name]; ok {
			return name
		}
		if bad == "" {
			bad = m
		}
		return m
	})
	if bad != "" {
		return "", fmt.Errorf("%s is not an allowed function", bad)
	}
	return out, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
