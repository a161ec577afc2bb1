// Package ast defines the node tree for parsed workflow plans.
// These types represent the structure of a plan after JSON/YAML parsing and
// normalization, and before validation and compilation.
package ast

// NodeKind identifies the variant of a workflow node.
type NodeKind string

const (
	KindSequence     NodeKind = "sequence"
	KindParallel     NodeKind = "parallel"
	KindToolCall     NodeKind = "tool_call"
	KindUserInput    NodeKind = "user_input"
	KindWaitForEvent NodeKind = "wait_for_event"
	KindBranch       NodeKind = "branch"
	KindLoop         NodeKind = "loop"
)

// ConditionKind identifies the variant of a condition.
type ConditionKind string

const (
	CondComparison ConditionKind = "comparison"
	CondLogical    ConditionKind = "logical"
)

// Workflow represents a complete parsed workflow plan.
type Workflow struct {
	// Name is the plan's display name.
	Name string

	// Description is the plan's human-readable description.
	Description string

	// Root is the top-level node of the plan tree.
	Root *Node
}

// Node represents a single workflow plan node. Exactly one of the
// kind-specific fields is populated, selected by Kind.
type Node struct {
	// Kind selects the node variant.
	Kind NodeKind

	// Description is optional free text carried by any node.
	Description string

	// Steps is the ordered child list (sequence nodes).
	Steps []*Node

	// Branches is the concurrent child list (parallel nodes).
	Branches []*Node

	// Tool holds the invocation details (tool_call nodes).
	Tool *ToolCall

	// Input holds the human-in-the-loop details (user_input nodes).
	Input *UserInput

	// Wait holds the event-wait details (wait_for_event nodes).
	Wait *WaitForEvent

	// Branch holds the conditional details (branch nodes).
	Branch *Branch

	// Loop holds the loop details (loop nodes).
	Loop *Loop
}

// ToolCall invokes a registered tool with named parameters.
type ToolCall struct {
	// ToolName must exist in the tool registry.
	ToolName string

	// Parameters maps parameter names to values. String values wholly
	// wrapped in {% ... %} are variable references.
	Parameters map[string]interface{}

	// OutputVariable, if set, names the variable the result is bound to.
	OutputVariable string

	// ErrorHandler, if set, runs when the tool call fails.
	ErrorHandler *Node
}

// UserInput requests input from a human operator.
type UserInput struct {
	// Prompt is the text shown to the operator. It may embed variable
	// references as {% 'text ' & $var & ' more' %}.
	Prompt string

	// InputType describes the expected input (free text, choice, ...).
	InputType string

	// Options enumerates the choices for choice-style input.
	Options []interface{}

	// OutputVariable, if set, names the variable the response is bound to.
	OutputVariable string
}

// WaitForEvent blocks until an external event arrives or a timeout elapses.
type WaitForEvent struct {
	// EventType is the event name to wait for.
	EventType string

	// EventSource identifies the emitting system.
	EventSource string

	// EntityID optionally correlates the event to an entity; may be a
	// variable reference.
	EntityID string

	// Timeout is the wait duration in seconds (0 = default).
	Timeout int

	// OutputVariable, if set, names the variable the event payload is
	// bound to.
	OutputVariable string

	// OnTimeout, if set, runs when the wait times out.
	OnTimeout *Node
}

// Branch routes control flow on a condition.
type Branch struct {
	// Condition is evaluated to pick a side.
	Condition *Condition

	// IfTrue runs when the condition holds.
	IfTrue *Node

	// IfFalse runs otherwise.
	IfFalse *Node
}

// Loop repeats its body while the condition holds.
type Loop struct {
	// Condition is re-evaluated before each iteration.
	Condition *Condition

	// Body is the loop body.
	Body *Node
}

// Condition is either a comparison or a logical combination of conditions,
// selected by Kind.
type Condition struct {
	// Kind selects the condition variant.
	Kind ConditionKind

	// Operator is a comparison operator (==, !=, <, <=, >, >=, in) for
	// comparisons, or "and"/"or" for logical conditions.
	Operator string

	// Left is the left operand; must be a single variable reference of the
	// form {% $name.prop %}.
	Left string

	// Right is the right operand: a variable reference string, a string
	// literal, a number, a bool, or nil.
	Right interface{}

	// Conditions are the sub-conditions of a logical condition.
	Conditions []*Condition
}
