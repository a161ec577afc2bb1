package compiler

import (
	"fmt"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/ast"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/jsonata"
)

// convertCondition synthesizes the JSONata expression for a condition,
// registering a demo value range for every variable it touches. The left
// side of a comparison is always a variable reference (the validator
// guarantees it); the right side drives the inferred range: numbers get a
// bracketing triple, booleans both values, string literals the literal and
// a non-matching counterpart, variable pairs a shared numeric range.
func (c *Compiler) convertCondition(cond *ast.Condition) (jsonata.Expr, error) {
	switch cond.Kind {
	case ast.CondComparison:
		leftName, ok := jsonata.ParseVarRef(cond.Left)
		if !ok {
			return nil, &Error{
				Kind:    ErrUnsupportedConditionKind,
				Message: fmt.Sprintf("comparison left operand '%s' is not a variable reference", cond.Left),
			}
		}
		left := jsonata.Flatten(leftName)
		leftVar := &jsonata.Var{Name: left}

		switch right := cond.Right.(type) {
		case string:
			if rightName, ok := jsonata.ParseVarRef(right); ok {
				rng := []interface{}{1, 2, 3, 4, 5}
				c.vars.register(left, rng)
				c.vars.register(jsonata.Flatten(rightName), rng)
				return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Var{Name: jsonata.Flatten(rightName)}}, nil
			}
			c.vars.register(left, []interface{}{right, "NOT_" + right})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: right}}, nil

		case bool:
			c.vars.register(left, []interface{}{!right, right})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: right}}, nil

		case int:
			c.vars.register(left, []interface{}{right - 1, right, right + 1})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: right}}, nil

		case int64:
			c.vars.register(left, []interface{}{right - 1, right, right + 1})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: right}}, nil

		case float64:
			c.vars.register(left, []interface{}{right - 1, right, right + 1})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: right}}, nil

		case nil:
			c.vars.register(left, []interface{}{nil})
			return &jsonata.Binary{Op: cond.Operator, Left: leftVar, Right: &jsonata.Literal{Value: nil}}, nil

		default:
			return nil, &Error{
				Kind:    ErrUnsupportedConditionKind,
				Message: fmt.Sprintf("unsupported right operand type %T", cond.Right),
			}
		}

	case ast.CondLogical:
		operands := make([]jsonata.Expr, 0, len(cond.Conditions))
		for _, sub := range cond.Conditions {
			expr, err := c.convertCondition(sub)
			if err != nil {
				return nil, err
			}
			operands = append(operands, expr)
		}
		return &jsonata.Logical{Op: cond.Operator, Operands: operands}, nil

	default:
		return nil, &Error{
			Kind:    ErrUnsupportedConditionKind,
			Message: fmt.Sprintf("unknown condition kind '%s'", cond.Kind),
		}
	}
}

// collectParameters rewrites a parameter map for use as Task arguments:
// expression strings get their variable references flattened and
// registered, nested maps recurse, scalars pass through.
func (c *Compiler) collectParameters(params map[string]interface{}) map[string]interface{} {
	converted := make(map[string]interface{}, len(params))
	for key, value := range params {
		switch val := value.(type) {
		case string:
			converted[key] = c.collectRef(val, nil)
		case map[string]interface{}:
			converted[key] = c.collectParameters(val)
		default:
			converted[key] = value
		}
	}
	return converted
}

// collectRef registers and flattens the variable references of one
// expression string. Text that is not a {% ... %} block passes through
// untouched.
func (c *Compiler) collectRef(text string, valueRange interface{}) string {
	if !jsonata.IsWrapped(text) {
		return text
	}
	for _, name := range jsonata.Vars(text) {
		c.vars.register(jsonata.Flatten(name), valueRange)
	}
	return jsonata.FlattenRefs(text)
}
