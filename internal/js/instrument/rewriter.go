package instrument

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"

	"github.com/scriptcov/scriptcov/internal/js/coverage"
)

// spanned is satisfied by AST nodes that carry source positions.
type spanned interface {
	Idx0() ast.Idx
	Idx1() ast.Idx
}

// nodeSpan returns the source index range of a node.
func nodeSpan(n any) (start, end int, ok bool) {
	s, ok := n.(spanned)
	if !ok {
		return 0, 0, false
	}
	return int(s.Idx0()), int(s.Idx1()), true
}

// idxBase is the index of the first source byte, measured once from a probe
// parse so offset arithmetic matches whatever base the parser counts from.
var idxBase = sync.OnceValue(func() int {
	p, err := parser.ParseFile("a")
	if err != nil || len(p.Body) == 0 {
		return 0
	}
	if start, _, ok := nodeSpan(p.Body[0].Stmt); ok {
		return start
	}
	return 0
})

// rewriter walks a parsed program and splices counter increments in front
// of every instrumentable statement, recording each instrumented line in
// the script's coverage data.
type rewriter struct {
	data    *coverage.ScriptData
	index   *lineIndex
	varName string
	base    int
	err     error
}

func newRewriter(data *coverage.ScriptData, source, varName string, startLine int) *rewriter {
	return &rewriter{
		data:    data,
		index:   newLineIndex(source, startLine),
		varName: varName,
		base:    idxBase(),
	}
}

// rewrite instruments the whole program in place.
func (r *rewriter) rewrite(p *ast.Program) error {
	p.Body = r.rewriteList(p.Body)
	return r.err
}

// lineOf returns the source line a node starts on.
func (r *rewriter) lineOf(n any) (int, bool) {
	start, _, ok := nodeSpan(n)
	if !ok {
		return 0, false
	}
	return r.index.lineAt(start - r.base), true
}

// lengthOf returns the character length of a node's source span.
func (r *rewriter) lengthOf(n any) int {
	start, end, ok := nodeSpan(n)
	if !ok || end < start {
		return 0
	}
	return end - start
}

// newIncrement synthesizes the counter statement for a line by parsing it,
// so the spliced node carries exactly the shape the generator expects.
func (r *rewriter) newIncrement(line int) (ast.Statement, bool) {
	snippet := fmt.Sprintf("%s['%s'][%d]++;", r.varName, r.data.HashedName, line)
	p, err := parser.ParseFile(snippet)
	if err != nil || len(p.Body) != 1 {
		if r.err == nil {
			r.err = fmt.Errorf("synthesizing counter for line %d: %w", line, err)
		}
		return ast.Statement{}, false
	}
	return p.Body[0], true
}

// rewriteList applies the general path to a statement list: each
// instrumentable statement is recorded and prefixed with its increment,
// then descended into.
func (r *rewriter) rewriteList(list []ast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(list)*2)
	for i := range list {
		s := list[i].Stmt
		if instrumentable(s) {
			if line, ok := r.lineOf(s); ok {
				r.data.AddExecutableLine(line, r.lengthOf(s))
				if incr, ok := r.newIncrement(line); ok {
					out = append(out, incr)
				}
			}
		}
		out = append(out, list[i])
		r.walkStmt(s)
	}
	return out
}

// ensureBlock normalizes a bare single-statement body into a block so the
// general path has a statement list to splice into. The wrapped statement
// keeps its own source line.
func (r *rewriter) ensureBlock(target *ast.Statement) {
	if target == nil || target.Stmt == nil {
		return
	}
	if _, ok := target.Stmt.(*ast.BlockStatement); ok {
		return
	}
	target.Stmt = &ast.BlockStatement{
		List: []ast.Statement{{Stmt: target.Stmt}},
	}
}

// walkStmt descends into a statement's nested statement lists and
// expressions. It never records the statement itself; that is the
// containing list's job.
func (r *rewriter) walkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.BlockStatement:
		n.List = r.rewriteList(n.List)

	case *ast.FunctionDeclaration:
		if n.Function != nil && n.Function.Body != nil {
			n.Function.Body.List = r.rewriteList(n.Function.Body.List)
		}

	case *ast.IfStatement:
		r.walkExprPtr(n.Test)
		r.ensureBlock(n.Consequent)
		if n.Consequent != nil {
			r.walkStmt(n.Consequent.Stmt)
		}
		r.walkAlternate(n)

	case *ast.SwitchStatement:
		r.rewriteSwitch(n)

	case *ast.ForStatement:
		r.walkExprPtr(n.Test)
		r.walkExprPtr(n.Update)
		r.ensureBlock(n.Body)
		if n.Body != nil {
			r.walkStmt(n.Body.Stmt)
		}

	case *ast.ForInStatement:
		r.ensureBlock(n.Body)
		if n.Body != nil {
			r.walkStmt(n.Body.Stmt)
		}

	case *ast.ForOfStatement:
		r.ensureBlock(n.Body)
		if n.Body != nil {
			r.walkStmt(n.Body.Stmt)
		}

	case *ast.WhileStatement:
		r.walkExprPtr(n.Test)
		r.ensureBlock(n.Body)
		if n.Body != nil {
			r.walkStmt(n.Body.Stmt)
		}

	case *ast.DoWhileStatement:
		r.walkExprPtr(n.Test)
		r.ensureBlock(n.Body)
		if n.Body != nil {
			r.walkStmt(n.Body.Stmt)
		}

	case *ast.TryStatement:
		if n.Body != nil {
			n.Body.List = r.rewriteList(n.Body.List)
		}
		if n.Catch != nil && n.Catch.Body != nil {
			n.Catch.Body.List = r.rewriteList(n.Catch.Body.List)
		}
		if n.Finally != nil {
			n.Finally.List = r.rewriteList(n.Finally.List)
		}

	case *ast.ExpressionStatement:
		r.walkExprPtr(n.Expression)

	case *ast.ReturnStatement:
		r.walkExprPtr(n.Argument)

	case *ast.ThrowStatement:
		r.walkExprPtr(n.Argument)

	case *ast.VariableDeclaration:
		for i := range n.List {
			r.walkExprPtr(n.List[i].Initializer)
		}
	}
}

// walkAlternate handles the else branch of an if statement. An `else if`
// has no statement list of its own to splice an increment into, so it is
// first wrapped in a synthetic block attached as the alternate, with the
// increment placed ahead of it. Condition evaluation order is unchanged.
func (r *rewriter) walkAlternate(n *ast.IfStatement) {
	if n.Alternate == nil || n.Alternate.Stmt == nil {
		return
	}
	if elseIf, ok := n.Alternate.Stmt.(*ast.IfStatement); ok {
		list := make([]ast.Statement, 0, 2)
		if line, ok := r.lineOf(elseIf); ok {
			r.data.AddExecutableLine(line, r.lengthOf(elseIf))
			if incr, ok := r.newIncrement(line); ok {
				list = append(list, incr)
			}
		}
		list = append(list, ast.Statement{Stmt: elseIf})
		n.Alternate.Stmt = &ast.BlockStatement{List: list}
		r.walkStmt(elseIf)
		return
	}
	r.ensureBlock(n.Alternate)
	r.walkStmt(n.Alternate.Stmt)
}

// rewriteSwitch applies the dedicated case path: every statement in a case
// consequent is recorded against its own line but with the governing case's
// length, and the consequent is rebuilt with increments interleaved.
func (r *rewriter) rewriteSwitch(sw *ast.SwitchStatement) {
	for i := range sw.Body {
		r.walkExprPtr(sw.Body[i].Test)

		caseLen := 0
		if start, end, ok := nodeSpan(sw.Body[i]); ok {
			caseLen = end - start
		} else if start, end, ok := nodeSpan(&sw.Body[i]); ok {
			caseLen = end - start
		}

		cons := sw.Body[i].Consequent
		out := make([]ast.Statement, 0, len(cons)*2)
		for j := range cons {
			s := cons[j].Stmt
			if line, ok := r.lineOf(s); ok {
				r.data.AddExecutableLine(line, caseLen)
				if incr, ok := r.newIncrement(line); ok {
					out = append(out, incr)
				}
			}
			out = append(out, cons[j])
			r.walkStmt(s)
		}
		sw.Body[i].Consequent = out
	}
}

// walkExprPtr unwraps an optional expression holder.
func (r *rewriter) walkExprPtr(e *ast.Expression) {
	if e != nil && e.Expr != nil {
		r.walkExpr(e.Expr)
	}
}

// walkExpr descends into expressions that can nest statements, so function
// bodies defined inline (callbacks, IIFEs, initializers) are instrumented
// too. Expression nodes themselves never receive counters.
func (r *rewriter) walkExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.FunctionLiteral:
		if n.Body != nil {
			n.Body.List = r.rewriteList(n.Body.List)
		}

	case *ast.ArrowFunctionLiteral:
		r.walkArrowBody(n)

	case *ast.CallExpression:
		r.walkExprPtr(n.Callee)
		for i := range n.ArgumentList {
			if n.ArgumentList[i].Expr != nil {
				r.walkExpr(n.ArgumentList[i].Expr)
			}
		}

	case *ast.ArrayLiteral:
		for i := range n.Value {
			if n.Value[i].Expr != nil {
				r.walkExpr(n.Value[i].Expr)
			}
		}

	case *ast.ObjectLiteral:
		for i := range n.Value {
			switch p := n.Value[i].Prop.(type) {
			case *ast.PropertyKeyed:
				r.walkExprPtr(p.Value)
			case *ast.SpreadElement:
				r.walkExprPtr(p.Expression)
			}
		}

	case *ast.AssignExpression:
		r.walkExprPtr(n.Left)
		r.walkExprPtr(n.Right)

	case *ast.BinaryExpression:
		r.walkExprPtr(n.Left)
		r.walkExprPtr(n.Right)

	case *ast.ConditionalExpression:
		r.walkExprPtr(n.Test)
		r.walkExprPtr(n.Consequent)
		r.walkExprPtr(n.Alternate)

	case *ast.SequenceExpression:
		for i := range n.Sequence {
			if n.Sequence[i].Expr != nil {
				r.walkExpr(n.Sequence[i].Expr)
			}
		}

	case *ast.UnaryExpression:
		r.walkExprPtr(n.Operand)

	case *ast.TemplateLiteral:
		for i := range n.Expressions {
			if n.Expressions[i].Expr != nil {
				r.walkExpr(n.Expressions[i].Expr)
			}
		}

	case *ast.SpreadElement:
		r.walkExprPtr(n.Expression)
	}
}

// walkArrowBody descends into an arrow function body, which is either a
// statement block or a single expression, possibly behind a dedicated
// holder node. An unrecognized shape fails the source rather than leaving
// the body uninstrumented.
func (r *rewriter) walkArrowBody(n *ast.ArrowFunctionLiteral) {
	v := any(n.Body)
	if r.walkArrowNode(v) {
		return
	}
	if inner, ok := unwrapHolder(v); ok && r.walkArrowNode(inner) {
		return
	}
	if r.err == nil {
		r.err = fmt.Errorf("unsupported arrow function body %T", n.Body)
	}
}

// walkArrowNode dispatches one candidate body value, reporting whether the
// shape was recognized.
func (r *rewriter) walkArrowNode(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case *ast.BlockStatement:
		if b != nil {
			b.List = r.rewriteList(b.List)
		}
	case *ast.Statement:
		if b != nil {
			r.walkStmt(b.Stmt)
		}
	case ast.Statement:
		r.walkStmt(b.Stmt)
	case *ast.Expression:
		r.walkExprPtr(b)
	case ast.Expression:
		if b.Expr != nil {
			r.walkExpr(b.Expr)
		}
	case ast.Stmt:
		r.walkStmt(b)
	case ast.Expr:
		r.walkExpr(b)
	default:
		return false
	}
	return true
}

// unwrapHolder peels one single-field wrapper node, the same shape as the
// Statement and Expression holders, without naming its type.
func unwrapHolder(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.NumField() != 1 || !rv.Field(0).CanInterface() {
		return nil, false
	}
	return rv.Field(0).Interface(), true
}
