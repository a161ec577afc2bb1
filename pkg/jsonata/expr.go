// Package jsonata builds and renders the JSONata expressions embedded in
// compiled state machines. Expressions are constructed as a small AST and
// rendered to {% ... %} text only at emission, never spliced as strings.
package jsonata

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is the interface for all expression nodes.
type Expr interface {
	// renderInner writes the expression without the {% %} wrapper.
	renderInner(sb *strings.Builder)
}

// Var references a state-machine variable by its flattened name.
// Dots are permitted only for the built-in $states namespace.
type Var struct {
	Name string
}

func (v *Var) renderInner(sb *strings.Builder) {
	sb.WriteByte('$')
	sb.WriteString(v.Name)
}

// Literal is a constant operand: string, bool, int64, float64, or nil.
type Literal struct {
	Value interface{}
}

func (l *Literal) renderInner(sb *strings.Builder) {
	switch v := l.Value.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if v {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		// String literals must be single-quoted in JSONata.
		sb.WriteByte('\'')
		sb.WriteString(v)
		sb.WriteByte('\'')
	case int:
		sb.WriteString(strconv.Itoa(v))
	case int64:
		sb.WriteString(strconv.FormatInt(v, 10))
	case float64:
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		sb.WriteString(fmt.Sprintf("%v", v))
	}
}

// Binary is a comparison or arithmetic operation (e.g. $x == 5, $i + 1).
// The "in" membership operator renders the same way.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (b *Binary) renderInner(sb *strings.Builder) {
	b.Left.renderInner(sb)
	sb.WriteByte(' ')
	sb.WriteString(b.Op)
	sb.WriteByte(' ')
	b.Right.renderInner(sb)
}

// Logical combines operands with "and" or "or".
type Logical struct {
	Op       string
	Operands []Expr
}

func (l *Logical) renderInner(sb *strings.Builder) {
	for i, op := range l.Operands {
		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(l.Op)
			sb.WriteByte(' ')
		}
		op.renderInner(sb)
	}
}

// Render produces the wrapped {% ... %} form of an expression.
func Render(e Expr) string {
	var sb strings.Builder
	sb.WriteString("{% ")
	e.renderInner(&sb)
	sb.WriteString(" %}")
	return sb.String()
}
