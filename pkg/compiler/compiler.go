// Package compiler lowers validated workflow plans into Amazon States
// Language programs. Each node kind lowers to one or more states; container
// nodes splice their children together by backpatching Next/End on the
// children's exit states. The compiler assumes its input already passed
// validation and treats structural surprises as fatal errors.
package compiler

import (
	"fmt"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/asl"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/ast"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/jsonata"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/tools"
)

// Fatal compilation error kinds. These indicate an AST the validator should
// have rejected, not a recoverable condition.
const (
	ErrUnknownNodeKind          = "UnknownNodeKind"
	ErrUnsupportedConditionKind = "UnsupportedConditionKind"
)

// Error is a fatal compilation error.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// initialStateName is the synthesized entry state that loads every
// externally supplied variable from the execution input.
const initialStateName = "Input State Variables"

// Reconciliation Pass state comments, recognized by the finalization pass.
const (
	commentChoiceVariables   = "Choice Variables"
	commentParallelVariables = "Parallel Variables"
)

// Options configures a Compiler.
type Options struct {
	// UserInputResource is the task resource invoked for user_input nodes.
	UserInputResource string

	// EventTaskResource is the task resource invoked for wait_for_event
	// nodes.
	EventTaskResource string

	// MaxWaitSeconds caps wait_for_event delays for simulated execution.
	MaxWaitSeconds int
}

// Default demo resources for the human-in-the-loop and event tasks.
const (
	DefaultUserInputResource = "arn:aws:lambda:us-west-2:000000000000:function:WorkflowCompiler-UserInputCallback"
	DefaultEventTaskResource = "arn:aws:lambda:us-west-2:000000000000:function:WorkflowCompiler-EventCallback"
	DefaultMaxWaitSeconds    = 10
)

// Compiler turns one workflow plan at a time into an ASL program. The name
// generator and variable registry are reset per Compile call, so a single
// Compiler may be reused sequentially; it must not be shared across
// goroutines.
type Compiler struct {
	registry *tools.Registry
	opts     Options
	names    *nameGenerator
	vars     *variableRegistry
}

// New creates a Compiler against a tool registry. Zero option fields take
// the package defaults.
func New(registry *tools.Registry, opts Options) *Compiler {
	if opts.UserInputResource == "" {
		opts.UserInputResource = DefaultUserInputResource
	}
	if opts.EventTaskResource == "" {
		opts.EventTaskResource = DefaultEventTaskResource
	}
	if opts.MaxWaitSeconds <= 0 {
		opts.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
	return &Compiler{registry: registry, opts: opts}
}

// Result is the output of one compilation: the program document and the
// external-input template for the variables never produced internally.
type Result struct {
	Program       *asl.Program
	InputTemplate map[string]interface{}
}

// fragment is the unit every lowering function returns: the states it
// emitted, its entry state, its terminal exit states, and the variables
// assigned somewhere inside it.
type fragment struct {
	states   map[string]*asl.State
	entry    string
	exits    []string
	assigned map[string]struct{}
}

func newFragment() *fragment {
	return &fragment{
		states:   make(map[string]*asl.State),
		assigned: make(map[string]struct{}),
	}
}

func (f *fragment) absorb(other *fragment) {
	for name, s := range other.states {
		f.states[name] = s
	}
	for v := range other.assigned {
		f.assigned[v] = struct{}{}
	}
}

// Compile lowers a whole plan and assembles the program document.
func (c *Compiler) Compile(wf *ast.Workflow) (*Result, error) {
	// Fresh per-run state keeps naming deterministic and collision-free.
	c.names = newNameGenerator()
	c.vars = newVariableRegistry()

	frag, err := c.lower(wf.Root)
	if err != nil {
		return nil, err
	}

	produced := make(map[string]struct{})
	c.finalize(frag.states, produced)

	// Anything still in the registry was never produced internally and
	// must come from the execution input.
	pool := c.vars.remaining(produced)
	initAssign := make(map[string]interface{}, len(pool))
	for name := range pool {
		initAssign[name] = "{% $states.input." + name + " %}"
	}
	frag.states[initialStateName] = &asl.State{
		Type:    asl.TypePass,
		Comment: "Initialize state machine variables",
		Assign:  initAssign,
		Next:    frag.entry,
	}

	program := &asl.Program{
		Comment:       fmt.Sprintf("%s: %s", wf.Name, wf.Description),
		StartAt:       initialStateName,
		QueryLanguage: asl.QueryLanguageJSONata,
		States:        frag.states,
	}
	return &Result{Program: program, InputTemplate: pool}, nil
}

// lower dispatches a node to its kind-specific lowering rule.
func (c *Compiler) lower(node *ast.Node) (*fragment, error) {
	switch node.Kind {
	case ast.KindSequence:
		return c.lowerSequence(node)
	case ast.KindParallel:
		return c.lowerParallel(node)
	case ast.KindToolCall:
		return c.lowerToolCall(node)
	case ast.KindUserInput:
		return c.lowerUserInput(node)
	case ast.KindWaitForEvent:
		return c.lowerWaitForEvent(node)
	case ast.KindBranch:
		return c.lowerBranch(node)
	case ast.KindLoop:
		return c.lowerLoop(node)
	default:
		return nil, &Error{Kind: ErrUnknownNodeKind, Message: fmt.Sprintf("unknown node kind '%s'", node.Kind)}
	}
}

// lowerSequence chains each step's exits into the next step's entry; the
// last step's exits are the sequence's exits.
func (c *Compiler) lowerSequence(node *ast.Node) (*fragment, error) {
	frag := newFragment()
	var exits []string

	for _, step := range node.Steps {
		sf, err := c.lower(step)
		if err != nil {
			return nil, err
		}
		frag.absorb(sf)
		if frag.entry == "" {
			frag.entry = sf.entry
		}
		for _, name := range exits {
			frag.states[name].Link(sf.entry)
		}
		exits = sf.exits
	}

	for _, name := range exits {
		frag.states[name].End = true
	}
	frag.exits = exits
	return frag, nil
}

// lowerParallel wraps each branch into an isolated sub-program and joins
// them through a merge Pass state that pre-declares the union of every
// branch's assignments (backfilled during finalization).
func (c *Compiler) lowerParallel(node *ast.Node) (*fragment, error) {
	parallelName := c.names.next("Parallel")
	passName := c.names.next("Pass")

	branches := make([]*asl.SubProgram, 0, len(node.Branches))
	assigned := make(map[string]struct{})
	for _, branch := range node.Branches {
		bf, err := c.lower(branch)
		if err != nil {
			return nil, err
		}
		branches = append(branches, &asl.SubProgram{StartAt: bf.entry, States: bf.states})
		for v := range bf.assigned {
			assigned[v] = struct{}{}
		}
	}

	frag := newFragment()
	frag.states[parallelName] = &asl.State{
		Type:     asl.TypeParallel,
		Comment:  commentOr(node, "Parallel execution"),
		Branches: branches,
		Next:     passName,
	}
	frag.states[passName] = &asl.State{
		Type:    asl.TypePass,
		Comment: commentParallelVariables,
		Assign:  placeholders(assigned),
		End:     true,
	}
	frag.entry = parallelName
	frag.exits = []string{passName}
	frag.assigned = assigned
	return frag, nil
}

// lowerToolCall emits one Task state invoking the tool's resource; an
// error handler becomes a Catch clause, and the handler's exits join the
// task's own success exit.
func (c *Compiler) lowerToolCall(node *ast.Node) (*fragment, error) {
	tc := node.Tool
	stateName := c.names.next(tc.ToolName)

	task := &asl.State{
		QueryLanguage: asl.QueryLanguageJSONata,
		Type:          asl.TypeTask,
		Resource:      c.registry.Resource(tc.ToolName),
		Comment:       commentOr(node, "Call "+tc.ToolName),
		Arguments:     c.collectParameters(tc.Parameters),
		End:           true,
	}

	frag := newFragment()
	frag.states[stateName] = task
	frag.entry = stateName

	if tc.OutputVariable != "" {
		v := jsonata.Flatten(tc.OutputVariable)
		task.Assign = map[string]interface{}{v: "{% $states.result %}"}
		frag.assigned[v] = struct{}{}
	}

	if tc.ErrorHandler != nil {
		hf, err := c.lower(tc.ErrorHandler)
		if err != nil {
			return nil, err
		}
		task.Catch = []asl.Catcher{{
			ErrorEquals: []string{"States.ALL"},
			Next:        hf.entry,
			Comment:     "Handle tool call errors",
		}}
		frag.absorb(hf)
		frag.exits = append(append([]string{}, hf.exits...), stateName)
		return frag, nil
	}

	frag.exits = []string{stateName}
	return frag, nil
}

// lowerUserInput emits one Task state representing a human-in-the-loop
// callback. Prompt and options pass through untouched; runtime resolves
// any references they embed.
func (c *Compiler) lowerUserInput(node *ast.Node) (*fragment, error) {
	in := node.Input
	stateName := c.names.next("UserInput")

	args := map[string]interface{}{
		"prompt":    stringOr(in.Prompt, "Prompt for user input"),
		"inputType": stringOr(in.InputType, "Input Type"),
	}
	if len(in.Options) > 0 {
		args["options"] = in.Options
	}

	task := &asl.State{
		Type:          asl.TypeTask,
		QueryLanguage: asl.QueryLanguageJSONata,
		Resource:      c.opts.UserInputResource,
		Comment:       "Wait for user input",
		Arguments:     args,
		End:           true,
	}

	frag := newFragment()
	frag.states[stateName] = task
	frag.entry = stateName
	frag.exits = []string{stateName}

	if in.OutputVariable != "" {
		v := jsonata.Flatten(in.OutputVariable)
		task.Assign = map[string]interface{}{v: "{% $states.result %}"}
		frag.assigned[v] = struct{}{}
	}
	return frag, nil
}

// lowerWaitForEvent emits a Wait state chained into a blocking Task whose
// heartbeat equals the delay. With an onTimeout handler, a Choice state
// after the task routes error results into the handler and everything else
// to a terminal Pass.
func (c *Compiler) lowerWaitForEvent(node *ast.Node) (*fragment, error) {
	w := node.Wait

	waitSeconds := c.opts.MaxWaitSeconds
	if w.Timeout > 0 && w.Timeout < waitSeconds {
		waitSeconds = w.Timeout
	}

	waitName := c.names.next(fmt.Sprintf("Wait%dSeconds", waitSeconds))
	taskName := c.names.next("WaitFor_" + w.EventType)

	frag := newFragment()
	frag.states[waitName] = &asl.State{
		Type:    asl.TypeWait,
		Seconds: waitSeconds,
		Next:    taskName,
	}

	task := &asl.State{
		Type:     asl.TypeTask,
		Comment:  fmt.Sprintf("Wait for %s from %s", w.EventType, w.EventSource),
		Resource: c.opts.EventTaskResource,
		Arguments: map[string]interface{}{
			"eventType":   w.EventType,
			"eventSource": w.EventSource,
		},
		HeartbeatSeconds: waitSeconds,
		End:              true,
	}
	if w.EntityID != "" {
		task.Arguments["entityId"] = c.collectRef(w.EntityID, nil)
	}
	frag.states[taskName] = task
	frag.entry = waitName

	if w.OutputVariable != "" {
		v := jsonata.Flatten(w.OutputVariable)
		task.Assign = map[string]interface{}{v: "{% $states.result %}"}
		frag.assigned[v] = struct{}{}
	}

	if w.OnTimeout == nil {
		frag.exits = []string{taskName}
		return frag, nil
	}

	checkName := c.names.next("WaitFor_" + w.EventType + "_ResultCheck")
	passName := c.names.next("Pass")

	tf, err := c.lower(w.OnTimeout)
	if err != nil {
		return nil, err
	}
	frag.absorb(tf)

	errorCheck := jsonata.Render(&jsonata.Binary{
		Op:    "in",
		Left:  &jsonata.Literal{Value: "error"},
		Right: &jsonata.Var{Name: "states.input"},
	})
	frag.states[checkName] = &asl.State{
		Type:    asl.TypeChoice,
		Comment: "Check result of " + w.EventType,
		Choices: []asl.ChoiceRule{{Condition: errorCheck, Next: tf.entry}},
		Default: passName,
	}
	frag.states[passName] = &asl.State{
		Type:    asl.TypePass,
		Comment: fmt.Sprintf("Received %s in wait state", w.EventType),
		End:     true,
	}
	task.Link(checkName)

	frag.exits = append(append([]string{}, tf.exits...), passName)
	return frag, nil
}

// lowerBranch emits a Choice state routing to the two lowered arms. Each
// arm's exits are redirected into its own reconciliation Pass state, which
// declares the variables the other arm assigned so both control-flow paths
// leave the namespace in the same shape.
func (c *Compiler) lowerBranch(node *ast.Node) (*fragment, error) {
	b := node.Branch

	expr, err := c.convertCondition(b.Condition)
	if err != nil {
		return nil, err
	}
	condText := jsonata.Render(expr)
	choiceName := c.names.nextTruncated(condText)

	tf, err := c.lower(b.IfTrue)
	if err != nil {
		return nil, err
	}
	ff, err := c.lower(b.IfFalse)
	if err != nil {
		return nil, err
	}

	frag := newFragment()
	frag.states[choiceName] = &asl.State{
		Type:    asl.TypeChoice,
		Comment: commentOr(node, "Conditional branch"),
		Choices: []asl.ChoiceRule{{Condition: condText, Next: tf.entry}},
		Default: ff.entry,
	}

	truePassName := c.names.next("Pass")
	falsePassName := c.names.next("Pass")
	for _, name := range tf.exits {
		tf.states[name].Link(truePassName)
	}
	for _, name := range ff.exits {
		ff.states[name].Link(falsePassName)
	}

	for name, s := range tf.states {
		frag.states[name] = s
	}
	for name, s := range ff.states {
		frag.states[name] = s
	}
	frag.states[truePassName] = &asl.State{
		Type:    asl.TypePass,
		Comment: commentChoiceVariables,
		Assign:  placeholders(ff.assigned),
		End:     true,
	}
	frag.states[falsePassName] = &asl.State{
		Type:    asl.TypePass,
		Comment: commentChoiceVariables,
		Assign:  placeholders(tf.assigned),
		End:     true,
	}

	frag.entry = choiceName
	frag.exits = []string{truePassName, falsePassName}
	// Reconciliation already absorbed both arms' assignments.
	return frag, nil
}

// lowerLoop emits a Choice state testing the condition: true into the body,
// default to a terminal Pass. Equality and membership conditions are
// assumed to be advanced by the body itself and loop straight back;
// ordering comparisons imply a counter, so body exits route through a
// synthesized iterator-increment Pass instead.
func (c *Compiler) lowerLoop(node *ast.Node) (*fragment, error) {
	l := node.Loop

	expr, err := c.convertCondition(l.Condition)
	if err != nil {
		return nil, err
	}
	condText := jsonata.Render(expr)
	condName := c.names.nextTruncated(condText)

	bf, err := c.lower(l.Body)
	if err != nil {
		return nil, err
	}
	passName := c.names.next("Pass")

	frag := newFragment()
	frag.absorb(bf)
	frag.states[condName] = &asl.State{
		Type:    asl.TypeChoice,
		Comment: "Check loop condition",
		Choices: []asl.ChoiceRule{{Condition: condText, Next: bf.entry}},
		Default: passName,
	}
	frag.states[passName] = &asl.State{
		Type:    asl.TypePass,
		Comment: "Loop completed",
		End:     true,
	}

	for _, name := range bf.exits {
		frag.states[name].Link(condName)
	}

	if l.Condition.Kind == ast.CondComparison && isOrderingOperator(l.Condition.Operator) {
		leftName, ok := jsonata.ParseVarRef(l.Condition.Left)
		if !ok {
			return nil, &Error{
				Kind:    ErrUnsupportedConditionKind,
				Message: fmt.Sprintf("loop condition left operand '%s' is not a variable reference", l.Condition.Left),
			}
		}
		iterator := jsonata.Flatten(leftName)
		iteratorName := c.names.next("IteratorControl")
		frag.states[iteratorName] = &asl.State{
			Type:    asl.TypePass,
			Comment: "Loop iterator increment",
			Assign: map[string]interface{}{
				iterator: jsonata.Render(&jsonata.Binary{
					Op:    "+",
					Left:  &jsonata.Var{Name: iterator},
					Right: &jsonata.Literal{Value: 1},
				}),
			},
			Next: condName,
		}
		for _, name := range bf.exits {
			frag.states[name].Next = iteratorName
		}
	}

	frag.entry = condName
	frag.exits = []string{passName}
	return frag, nil
}

// finalize post-processes every emitted state once, including those inside
// Parallel sub-programs: single-field Task assignments expand into the full
// registered sub-field set of their output variable, and reconciliation
// Pass placeholders backfill the same way. Variables covered here no longer
// need external input.
func (c *Compiler) finalize(states map[string]*asl.State, produced map[string]struct{}) {
	for _, s := range states {
		switch {
		case s.Type == asl.TypeTask && len(s.Assign) == 1:
			for v := range s.Assign {
				matches := c.vars.matching(v)
				if len(matches) == 0 {
					// Output never referenced downstream; keep the
					// direct result assignment.
					produced[v] = struct{}{}
					continue
				}
				if s.Arguments == nil {
					s.Arguments = make(map[string]interface{})
				}
				s.Arguments["ReturnValueRange"] = matches
				assign := make(map[string]interface{}, len(matches))
				for k := range matches {
					assign[k] = "{% $states.result." + k + " %}"
					produced[k] = struct{}{}
				}
				s.Assign = assign
			}

		case s.Type == asl.TypePass && (s.Comment == commentChoiceVariables || s.Comment == commentParallelVariables):
			expanded := make(map[string]interface{})
			for v := range s.Assign {
				matches := c.vars.matching(v)
				if len(matches) == 0 {
					expanded[v] = nil
					produced[v] = struct{}{}
					continue
				}
				for k := range matches {
					expanded[k] = nil
					produced[k] = struct{}{}
				}
			}
			if len(expanded) > 0 {
				s.Assign = expanded
			}
		}

		for _, branch := range s.Branches {
			c.finalize(branch.States, produced)
		}
	}
}

// isOrderingOperator reports whether an operator implies a loop counter
// needing manual advancement.
func isOrderingOperator(op string) bool {
	switch op {
	case "==", "!=", "in":
		return false
	}
	return true
}

func placeholders(assigned map[string]struct{}) map[string]interface{} {
	if len(assigned) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(assigned))
	for v := range assigned {
		out[v] = nil
	}
	return out
}

func commentOr(node *ast.Node, fallback string) string {
	if node.Description != "" {
		return node.Description
	}
	return fallback
}

func stringOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
