package instrument

import (
	"github.com/t14raptor/go-fast/ast"
)

// instrumentable reports whether a statement appearing in a statement list
// receives a counter via the general rewrite path.
//
// Statements governed by a switch case never reach this path; the rewriter
// handles case consequents separately. Function declarations qualify
// because the only statement lists they can appear in are the program root
// and blocks. For-loop initializer declarations live in a dedicated AST
// field, not a statement list, and are therefore never classified.
func instrumentable(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.SwitchStatement,
		*ast.ForStatement,
		*ast.ForInStatement,
		*ast.ForOfStatement,
		*ast.DoWhileStatement,
		*ast.WhileStatement,
		*ast.ContinueStatement,
		*ast.BreakStatement,
		*ast.TryStatement,
		*ast.ThrowStatement,
		*ast.IfStatement,
		*ast.ExpressionStatement,
		*ast.ReturnStatement,
		*ast.VariableDeclaration,
		*ast.FunctionDeclaration:
		return true
	}
	return false
}
