// Package validator checks a parsed workflow plan before compilation.
// It walks the tree once with a per-branch scope of defined variables,
// accumulating structured errors rather than stopping at the first problem,
// so a caller can report every issue in one pass.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/ast"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/jsonata"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/parser"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/tools"
)

// Error kind constants for the validation taxonomy.
const (
	KindMalformedEmbeddedJSON      = "MalformedEmbeddedJson"
	KindDegenerateContainer        = "DegenerateContainer"
	KindDisallowedExpressionSyntax = "DisallowedExpressionSyntax"
	KindUndefinedVariable          = "UndefinedVariable"
	KindUnknownTool                = "UnknownTool"
	KindUnknownParameter           = "UnknownParameter"
	KindUnknownNodeKind            = "UnknownNodeKind"
	KindUnsupportedConditionKind   = "UnsupportedConditionKind"
)

// Error is a single structured validation finding.
type Error struct {
	// Kind is one of the taxonomy constants above.
	Kind string `json:"kind"`

	// Path locates the finding, e.g. "root.sequence.steps[2].branch.condition.left".
	Path string `json:"path,omitempty"`

	// Message is the human-readable explanation.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at '%s': %s", e.Kind, e.Path, e.Message)
}

// paramExpr matches a parameter expression block: one or more variable
// references optionally concatenated with literal text, no brackets or
// parentheses (JSONata function calls and indexers are not allowed).
var paramExpr = regexp.MustCompile(`^\{\%[^\[\]()]*\$[a-zA-Z_][\w.]*[^\[\]()]*\%\}$`)

// Validator walks a plan tree against a tool registry.
type Validator struct {
	registry *tools.Registry
	errs     []*Error
}

// New creates a Validator for the given tool registry.
func New(registry *tools.Registry) *Validator {
	return &Validator{registry: registry}
}

// ValidateSource parses and validates a raw plan document in one pass.
// Parse failures are returned as a single-element error list; a parsed
// plan is validated and returned together with any findings.
func ValidateSource(source []byte, registry *tools.Registry) (*ast.Workflow, []*Error) {
	wf, err := parser.Parse(source)
	if err != nil {
		pe, ok := err.(*parser.ParseError)
		if !ok {
			return nil, []*Error{{Kind: KindUnknownNodeKind, Message: err.Error()}}
		}
		return nil, []*Error{{Kind: pe.Kind, Path: pe.Location, Message: pe.Message}}
	}
	return wf, Validate(wf, registry)
}

// Validate checks a parsed workflow and returns every finding.
func Validate(wf *ast.Workflow, registry *tools.Registry) []*Error {
	v := New(registry)
	v.walkNode(wf.Root, "root", NewScope())
	return v.errs
}

func (v *Validator) addError(kind, path, format string, args ...interface{}) {
	v.errs = append(v.errs, &Error{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)})
}

// walkNode validates one node and recurses into its children, threading the
// scope per the container rules.
func (v *Validator) walkNode(node *ast.Node, path string, scope ScopeSet) {
	if node == nil {
		return
	}
	path = path + "." + string(node.Kind)

	switch node.Kind {
	case ast.KindSequence:
		v.checkContainer(node, node.Steps, path+".steps")
		for i, step := range node.Steps {
			// Every step sees what earlier steps defined.
			v.walkNode(step, fmt.Sprintf("%s.steps[%d]", path, i), scope)
		}

	case ast.KindParallel:
		v.checkContainer(node, node.Branches, path+".branches")
		entry := scope.Clone()
		for i, branch := range node.Branches {
			// Branches cannot see each other's outputs while running.
			branchScope := entry.Clone()
			v.walkNode(branch, fmt.Sprintf("%s.branches[%d]", path, i), branchScope)
			// After the join any branch's outputs exist, so fold them back.
			scope.Union(branchScope)
		}

	case ast.KindToolCall:
		v.checkToolCall(node.Tool, path, scope)

	case ast.KindUserInput:
		v.checkPrompt(node.Input.Prompt, path+".prompt", scope)
		if node.Input.OutputVariable != "" {
			scope.Add(node.Input.OutputVariable)
		}

	case ast.KindWaitForEvent:
		wait := node.Wait
		if wait.EntityID != "" {
			v.checkEntityID(wait.EntityID, path+".entityId", scope)
		}
		if wait.OutputVariable != "" {
			scope.Add(wait.OutputVariable)
		}
		if wait.OnTimeout != nil {
			v.walkNode(wait.OnTimeout, path+".onTimeout", scope)
		}

	case ast.KindBranch:
		v.checkCondition(node.Branch.Condition, path+".condition", scope)
		// Each arm runs alone; neither result merges back.
		v.walkNode(node.Branch.IfTrue, path+".ifTrue", scope.Clone())
		v.walkNode(node.Branch.IfFalse, path+".ifFalse", scope.Clone())

	case ast.KindLoop:
		v.checkCondition(node.Loop.Condition, path+".condition", scope)
		v.walkNode(node.Loop.Body, path+".body", scope)

	default:
		v.addError(KindUnknownNodeKind, path, "unknown node kind '%s'", node.Kind)
	}
}

// checkContainer flags empty and single-child containers; the producer
// should have unwrapped them.
func (v *Validator) checkContainer(node *ast.Node, children []*ast.Node, path string) {
	switch len(children) {
	case 0:
		v.addError(KindDegenerateContainer, path, "remove empty '%s' container", node.Kind)
	case 1:
		v.addError(KindDegenerateContainer, path,
			"remove wrapper '%s' container with only one '%s' node", node.Kind, children[0].Kind)
	}
}

// checkToolCall validates the tool reference, its parameters, and the
// optional error handler. The output variable enters scope after the
// node's own inputs, then the handler is walked with that scope.
func (v *Validator) checkToolCall(tool *ast.ToolCall, path string, scope ScopeSet) {
	def, known := v.registry.Lookup(tool.ToolName)
	if !known {
		v.addError(KindUnknownTool, path+".parameters",
			"'%s' does not exist in the tool registry", tool.ToolName)
	} else {
		for key, value := range tool.Parameters {
			if !def.HasParameter(key) {
				v.addError(KindUnknownParameter, path+".parameters",
					"invalid parameter name '%s' for '%s'", key, tool.ToolName)
				continue
			}
			if nested, ok := value.(map[string]interface{}); ok {
				for subKey, subValue := range nested {
					v.checkParameterValue(subValue, key+"."+subKey, path+".parameters", scope)
				}
			} else {
				v.checkParameterValue(value, key, path+".parameters", scope)
			}
		}
	}

	if tool.OutputVariable != "" {
		scope.Add(tool.OutputVariable)
	}
	if tool.ErrorHandler != nil {
		v.walkNode(tool.ErrorHandler, path+".errorHandler", scope)
	}
}

// checkParameterValue validates a single parameter value: expression blocks
// must match the allowed reference-and-concatenation form with every
// referenced variable in scope; scalars pass through.
func (v *Validator) checkParameterValue(value interface{}, key, path string, scope ScopeSet) {
	switch val := value.(type) {
	case string:
		if paramExpr.MatchString(val) {
			for _, name := range jsonata.Vars(val) {
				if !scope.Has(jsonata.RootName(name)) {
					v.addError(KindUndefinedVariable, path,
						"variable '%s' in parameter '%s' is not defined before use in its execution context",
						jsonata.RootName(name), key)
				}
			}
			return
		}
		if strings.Contains(val, "{% ") && strings.Contains(val, "%}") {
			switch {
			case strings.ContainsAny(val, "[]()"):
				v.addError(KindDisallowedExpressionSyntax, path,
					"parameter '%s': '%s' must not contain brackets or parentheses in a {%% ... %%} expression", key, val)
			case !strings.Contains(val, "$"):
				v.addError(KindDisallowedExpressionSyntax, path,
					"parameter '%s': static value '%s' should be a plain string without {%% ... %%} wrapping", key, val)
			default:
				v.addError(KindDisallowedExpressionSyntax, path,
					"parameter '%s': '%s' should follow the {%% $varName1 & ' text ' & $varName2 %%} format", key, val)
			}
		}
		// Plain string literal: fine.
	case int, int64, float64, bool, nil:
		// Scalar literal: fine.
	default:
		v.addError(KindDisallowedExpressionSyntax, path,
			"invalid %T parameter type for '%s'", value, key)
	}
}

// checkCondition validates a condition tree: comparison operands and,
// recursively, every sub-condition of a logical combination.
func (v *Validator) checkCondition(cond *ast.Condition, path string, scope ScopeSet) {
	if cond == nil {
		v.addError(KindUnsupportedConditionKind, path, "missing condition")
		return
	}

	switch cond.Kind {
	case ast.CondComparison:
		v.checkOperand(cond.Left, path+".left", true, scope)
		switch right := cond.Right.(type) {
		case string:
			v.checkOperand(right, path+".right", false, scope)
		case int, int64, float64, bool, nil:
			// Literal right side: fine.
		default:
			v.addError(KindDisallowedExpressionSyntax, path+".right",
				"invalid right operand type %T", cond.Right)
		}

	case ast.CondLogical:
		for i, sub := range cond.Conditions {
			v.checkCondition(sub, fmt.Sprintf("%s.conditions[%d]", path, i), scope)
		}

	default:
		v.addError(KindUnsupportedConditionKind, path, "unknown condition kind '%s'", cond.Kind)
	}
}

// checkOperand validates one comparison operand. The left side must be a
// single variable reference; the right side may also be a plain literal.
func (v *Validator) checkOperand(operand, path string, isLeft bool, scope ScopeSet) {
	if name, ok := jsonata.ParseVarRef(operand); ok {
		if !scope.Has(jsonata.RootName(name)) {
			v.addError(KindUndefinedVariable, path,
				"variable '%s' is not defined before use in its execution context", name)
		}
		return
	}

	if strings.Contains(operand, "{% ") && strings.Contains(operand, "%}") {
		switch {
		case strings.ContainsAny(operand, "[]()"):
			v.addError(KindDisallowedExpressionSyntax, path,
				"operand '%s' must not contain brackets or parentheses in a {%% ... %%} expression", operand)
		case !isLeft && !strings.Contains(operand, "$"):
			v.addError(KindDisallowedExpressionSyntax, path,
				"right operand with static value '%s' should be a plain string without {%% ... %%} wrapping", operand)
		default:
			v.addError(KindDisallowedExpressionSyntax, path,
				"operand '%s' should follow the {%% $varName %%} format", operand)
		}
		return
	}

	if isLeft {
		v.addError(KindDisallowedExpressionSyntax, path,
			"left operand '%s' should follow the {%% $varName %%} format", operand)
	}
	// A bare string on the right is a literal.
}

// checkEntityID validates an entityId, which must be a single variable
// reference when it is an expression block.
func (v *Validator) checkEntityID(entityID, path string, scope ScopeSet) {
	name, ok := jsonata.ParseVarRef(entityID)
	if !ok {
		v.addError(KindDisallowedExpressionSyntax, path,
			"variable reference '%s' should follow the {%% $varName %%} format", entityID)
		return
	}
	if !scope.Has(jsonata.RootName(name)) {
		v.addError(KindUndefinedVariable, path,
			"variable reference '%s' is not defined before use in its execution context", entityID)
	}
}

// checkPrompt validates variable references embedded in a user-input
// prompt. A prompt using expressions must be wholly wrapped so the
// concatenation renders as one JSONata string.
func (v *Validator) checkPrompt(prompt, path string, scope ScopeSet) {
	if !strings.Contains(prompt, "{% ") || !strings.Contains(prompt, "%}") {
		return
	}
	if !strings.HasPrefix(prompt, "{%") || !strings.HasSuffix(prompt, "%}") {
		v.addError(KindDisallowedExpressionSyntax, path,
			"variable reference in '%s' should follow the {%% 'text ' & $varName & ' more' %%} format", prompt)
		return
	}
	for _, name := range jsonata.Vars(prompt) {
		if !scope.Has(jsonata.RootName(name)) {
			v.addError(KindUndefinedVariable, path,
				"variable '%s' in '%s' is not defined before use in its execution context",
				jsonata.RootName(name), prompt)
		}
	}
}
