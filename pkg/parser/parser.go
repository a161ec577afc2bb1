// Package parser converts JSON/YAML workflow plan documents into AST types.
// Plans arrive either as a direct {name, description, root} document or as a
// test-fixture wrapper {expected_workflow: {...}}. Sub-objects that were
// serialized as JSON strings (a common artifact of plan generation) are
// transparently re-parsed during normalization.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/ast"
	"gopkg.in/yaml.v3"
)

// MaxSourceSize is the maximum plan document size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// Error kinds reported at the parse boundary.
const (
	KindMalformedEmbeddedJSON = "MalformedEmbeddedJson"
	KindUnknownNodeKind       = "UnknownNodeKind"
	KindUnsupportedCondition  = "UnsupportedConditionKind"
	KindInvalidDocument       = "InvalidDocument"
)

// ParseError represents an error encountered during plan parsing.
type ParseError struct {
	Kind     string
	Message  string
	Location string // e.g., "root.sequence.steps[1].tool_call"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Parse parses a JSON or YAML workflow plan document into an AST Workflow.
func Parse(source []byte) (*ast.Workflow, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{
			Kind:    KindInvalidDocument,
			Message: fmt.Sprintf("plan source size %d exceeds maximum %d bytes", len(source), MaxSourceSize),
		}
	}

	var raw interface{}
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Kind: KindInvalidDocument, Message: fmt.Sprintf("invalid document: %v", err)}
	}

	doc, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ParseError{Kind: KindInvalidDocument, Message: "plan document must be an object"}
	}

	doc, err := extractWorkflow(doc)
	if err != nil {
		return nil, err
	}

	wf := &ast.Workflow{}
	if v, ok := doc["name"].(string); ok {
		wf.Name = v
	}
	if v, ok := doc["description"].(string); ok {
		wf.Description = v
	}

	rootRaw, err := reparseEmbedded(doc["root"], "root", "root")
	if err != nil {
		return nil, err
	}
	root, err := parseNode(rootRaw, "root")
	if err != nil {
		return nil, err
	}
	wf.Root = root

	return wf, nil
}

// extractWorkflow locates the workflow object in a loaded document,
// supporting both the direct format and the expected_workflow fixture
// wrapper.
func extractWorkflow(doc map[string]interface{}) (map[string]interface{}, error) {
	isWorkflow := func(m map[string]interface{}) bool {
		for _, field := range []string{"root", "name", "description"} {
			if _, ok := m[field]; !ok {
				return false
			}
		}
		return true
	}

	if isWorkflow(doc) {
		return doc, nil
	}
	if inner, ok := doc["expected_workflow"].(map[string]interface{}); ok && isWorkflow(inner) {
		return inner, nil
	}
	return nil, &ParseError{
		Kind:    KindInvalidDocument,
		Message: "no workflow structure found: document needs 'name', 'description' and 'root'",
	}
}

// reparseEmbedded re-parses a property that arrived as a JSON string where a
// structured object is expected. A string that looks like JSON but does not
// parse is a fatal MalformedEmbeddedJson error.
func reparseEmbedded(value interface{}, prop, path string) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return value, nil
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, &ParseError{
			Kind:     KindMalformedEmbeddedJSON,
			Message:  fmt.Sprintf("invalid JSON in '%s': %v", prop, err),
			Location: path,
		}
	}
	return parsed, nil
}

// parseNode parses a single workflow node from its generic representation.
func parseNode(raw interface{}, path string) (*ast.Node, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ParseError{
			Kind:     KindInvalidDocument,
			Message:  fmt.Sprintf("node must be an object, got %T", raw),
			Location: path,
		}
	}

	kind, _ := m["type"].(string)
	node := &ast.Node{Kind: ast.NodeKind(kind)}
	if v, ok := m["description"].(string); ok {
		node.Description = v
	}
	path = path + "." + kind

	switch node.Kind {
	case ast.KindSequence:
		steps, err := parseChildList(m["steps"], path+".steps")
		if err != nil {
			return nil, err
		}
		node.Steps = steps

	case ast.KindParallel:
		branches, err := parseChildList(m["branches"], path+".branches")
		if err != nil {
			return nil, err
		}
		node.Branches = branches

	case ast.KindToolCall:
		tool := &ast.ToolCall{Parameters: map[string]interface{}{}}
		tool.ToolName, _ = m["toolName"].(string)
		tool.OutputVariable, _ = m["outputVariable"].(string)

		params, err := reparseEmbedded(m["parameters"], "parameters", path)
		if err != nil {
			return nil, err
		}
		if pm, ok := params.(map[string]interface{}); ok {
			tool.Parameters = pm
		}

		if handlerRaw, ok := m["errorHandler"]; ok {
			handlerRaw, err = reparseEmbedded(handlerRaw, "errorHandler", path)
			if err != nil {
				return nil, err
			}
			handler, err := parseNode(handlerRaw, path+".errorHandler")
			if err != nil {
				return nil, err
			}
			tool.ErrorHandler = handler
		}
		node.Tool = tool

	case ast.KindUserInput:
		input := &ast.UserInput{}
		input.Prompt, _ = m["prompt"].(string)
		input.InputType, _ = m["inputType"].(string)
		input.OutputVariable, _ = m["outputVariable"].(string)
		if opts, ok := m["options"].([]interface{}); ok {
			input.Options = opts
		}
		node.Input = input

	case ast.KindWaitForEvent:
		wait := &ast.WaitForEvent{}
		wait.EventType, _ = m["eventType"].(string)
		wait.EventSource, _ = m["eventSource"].(string)
		wait.EntityID, _ = m["entityId"].(string)
		wait.OutputVariable, _ = m["outputVariable"].(string)
		wait.Timeout = intValue(m["timeout"])

		if timeoutRaw, ok := m["onTimeout"]; ok {
			timeoutRaw, err := reparseEmbedded(timeoutRaw, "onTimeout", path)
			if err != nil {
				return nil, err
			}
			handler, err := parseNode(timeoutRaw, path+".onTimeout")
			if err != nil {
				return nil, err
			}
			wait.OnTimeout = handler
		}
		node.Wait = wait

	case ast.KindBranch:
		branch := &ast.Branch{}
		cond, err := parseConditionProp(m, path)
		if err != nil {
			return nil, err
		}
		branch.Condition = cond

		ifTrue, err := parseNode(m["ifTrue"], path+".ifTrue")
		if err != nil {
			return nil, err
		}
		branch.IfTrue = ifTrue

		ifFalse, err := parseNode(m["ifFalse"], path+".ifFalse")
		if err != nil {
			return nil, err
		}
		branch.IfFalse = ifFalse
		node.Branch = branch

	case ast.KindLoop:
		loop := &ast.Loop{}
		cond, err := parseConditionProp(m, path)
		if err != nil {
			return nil, err
		}
		loop.Condition = cond

		body, err := parseNode(m["body"], path+".body")
		if err != nil {
			return nil, err
		}
		loop.Body = body
		node.Loop = loop

	default:
		return nil, &ParseError{
			Kind:     KindUnknownNodeKind,
			Message:  fmt.Sprintf("unknown node type '%s'", kind),
			Location: path,
		}
	}

	return node, nil
}

// parseChildList parses the children of a sequence or parallel container.
func parseChildList(raw interface{}, path string) ([]*ast.Node, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, &ParseError{
			Kind:     KindInvalidDocument,
			Message:  "container children must be a list",
			Location: path,
		}
	}
	nodes := make([]*ast.Node, 0, len(items))
	for i, item := range items {
		child, err := parseNode(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, child)
	}
	return nodes, nil
}

// parseConditionProp extracts and parses a node's condition property.
func parseConditionProp(m map[string]interface{}, path string) (*ast.Condition, error) {
	raw, err := reparseEmbedded(m["condition"], "condition", path)
	if err != nil {
		return nil, err
	}
	return parseCondition(raw, path+".condition")
}

// parseCondition parses a comparison or logical condition.
func parseCondition(raw interface{}, path string) (*ast.Condition, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ParseError{
			Kind:     KindUnsupportedCondition,
			Message:  fmt.Sprintf("condition must be an object, got %T", raw),
			Location: path,
		}
	}

	kind, _ := m["type"].(string)
	cond := &ast.Condition{Kind: ast.ConditionKind(kind)}
	cond.Operator, _ = m["operator"].(string)

	switch cond.Kind {
	case ast.CondComparison:
		cond.Left, _ = m["left"].(string)
		cond.Right = m["right"]

	case ast.CondLogical:
		subs, ok := m["conditions"].([]interface{})
		if !ok {
			return nil, &ParseError{
				Kind:     KindUnsupportedCondition,
				Message:  "logical condition must have a 'conditions' list",
				Location: path,
			}
		}
		for i, sub := range subs {
			parsed, err := parseCondition(sub, fmt.Sprintf("%s.conditions[%d]", path, i))
			if err != nil {
				return nil, err
			}
			cond.Conditions = append(cond.Conditions, parsed)
		}

	default:
		return nil, &ParseError{
			Kind:     KindUnsupportedCondition,
			Message:  fmt.Sprintf("unknown condition type '%s'", kind),
			Location: path,
		}
	}

	return cond, nil
}

// intValue coerces a decoded scalar to int. YAML decoding yields int,
// JSON re-parsing yields float64; both appear in plan documents.
func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
