package parser

import (
	"strings"
	"testing"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/ast"
)

func TestParseBasicPlan(t *testing.T) {
	src := []byte(`{
  "name": "order-flow",
  "description": "Fetch an order and notify the customer",
  "root": {
    "type": "sequence",
    "steps": [
      {
        "type": "tool_call",
        "toolName": "fetch_order",
        "parameters": {"order_id": "{% $order_id %}"},
        "outputVariable": "order"
      },
      {
        "type": "tool_call",
        "toolName": "send_email",
        "parameters": {"to": "ops@example.com"}
      }
    ]
  }
}`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wf.Name != "order-flow" {
		t.Errorf("expected name 'order-flow', got %q", wf.Name)
	}
	if wf.Root.Kind != ast.KindSequence {
		t.Fatalf("expected sequence root, got %q", wf.Root.Kind)
	}
	if len(wf.Root.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(wf.Root.Steps))
	}

	first := wf.Root.Steps[0]
	if first.Kind != ast.KindToolCall {
		t.Fatalf("expected tool_call, got %q", first.Kind)
	}
	if first.Tool.ToolName != "fetch_order" {
		t.Errorf("expected tool 'fetch_order', got %q", first.Tool.ToolName)
	}
	if first.Tool.OutputVariable != "order" {
		t.Errorf("expected output variable 'order', got %q", first.Tool.OutputVariable)
	}
	if first.Tool.Parameters["order_id"] != "{% $order_id %}" {
		t.Errorf("unexpected parameter value: %v", first.Tool.Parameters["order_id"])
	}
}

func TestParseYAMLPlan(t *testing.T) {
	src := []byte(`
name: approval-flow
description: Ask before acting
root:
  type: user_input
  prompt: Approve the change?
  inputType: choice
  options: [approve, reject]
  outputVariable: decision
`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Root.Kind != ast.KindUserInput {
		t.Fatalf("expected user_input root, got %q", wf.Root.Kind)
	}
	if wf.Root.Input.Prompt != "Approve the change?" {
		t.Errorf("unexpected prompt: %q", wf.Root.Input.Prompt)
	}
	if len(wf.Root.Input.Options) != 2 {
		t.Errorf("expected 2 options, got %d", len(wf.Root.Input.Options))
	}
}

func TestParseExpectedWorkflowWrapper(t *testing.T) {
	src := []byte(`{
  "expected_workflow": {
    "name": "wrapped",
    "description": "fixture format",
    "root": {"type": "tool_call", "toolName": "ping", "parameters": {}}
  }
}`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Name != "wrapped" {
		t.Errorf("expected name 'wrapped', got %q", wf.Name)
	}
}

func TestParseEmbeddedJSONParameters(t *testing.T) {
	src := []byte(`{
  "name": "embedded",
  "description": "parameters arrive as a JSON string",
  "root": {
    "type": "tool_call",
    "toolName": "fetch_order",
    "parameters": "{\"order_id\": \"{% $order_id %}\"}"
  }
}`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Root.Tool.Parameters["order_id"] != "{% $order_id %}" {
		t.Errorf("embedded parameters not re-parsed: %v", wf.Root.Tool.Parameters)
	}
}

func TestParseMalformedEmbeddedJSON(t *testing.T) {
	src := []byte(`{
  "name": "broken",
  "description": "bad embedded JSON",
  "root": {
    "type": "tool_call",
    "toolName": "fetch_order",
    "parameters": "{\"order_id\": "
  }
}`)

	_, err := Parse(src)
	if err == nil {
		t.Fatal("expected an error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != KindMalformedEmbeddedJSON {
		t.Errorf("expected kind %q, got %q", KindMalformedEmbeddedJSON, pe.Kind)
	}
}

func TestParseUnknownNodeKind(t *testing.T) {
	src := []byte(`{
  "name": "bad-kind",
  "description": "node type nobody knows",
  "root": {"type": "teleport"}
}`)

	_, err := Parse(src)
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if pe.Kind != KindUnknownNodeKind {
		t.Errorf("expected kind %q, got %q", KindUnknownNodeKind, pe.Kind)
	}
}

func TestParseConditionTree(t *testing.T) {
	src := []byte(`{
  "name": "branching",
  "description": "logical condition",
  "root": {
    "type": "branch",
    "condition": {
      "type": "logical",
      "operator": "and",
      "conditions": [
        {"type": "comparison", "operator": ">", "left": "{% $total %}", "right": 100},
        {"type": "comparison", "operator": "==", "left": "{% $status %}", "right": "open"}
      ]
    },
    "ifTrue": {"type": "tool_call", "toolName": "escalate", "parameters": {}},
    "ifFalse": {"type": "tool_call", "toolName": "archive", "parameters": {}}
  }
}`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cond := wf.Root.Branch.Condition
	if cond.Kind != ast.CondLogical {
		t.Fatalf("expected logical condition, got %q", cond.Kind)
	}
	if len(cond.Conditions) != 2 {
		t.Fatalf("expected 2 sub-conditions, got %d", len(cond.Conditions))
	}
	if cond.Conditions[0].Operator != ">" {
		t.Errorf("expected operator '>', got %q", cond.Conditions[0].Operator)
	}
	if cond.Conditions[0].Left != "{% $total %}" {
		t.Errorf("unexpected left operand: %q", cond.Conditions[0].Left)
	}
}

func TestParseWaitForEvent(t *testing.T) {
	src := []byte(`{
  "name": "waiting",
  "description": "wait with timeout handler",
  "root": {
    "type": "wait_for_event",
    "eventType": "payment_received",
    "eventSource": "billing",
    "entityId": "{% $order_id %}",
    "timeout": 300,
    "outputVariable": "payment",
    "onTimeout": {"type": "tool_call", "toolName": "alert_ops", "parameters": {}}
  }
}`)

	wf, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := wf.Root.Wait
	if w.EventType != "payment_received" {
		t.Errorf("unexpected eventType: %q", w.EventType)
	}
	if w.Timeout != 300 {
		t.Errorf("expected timeout 300, got %d", w.Timeout)
	}
	if w.OnTimeout == nil || w.OnTimeout.Kind != ast.KindToolCall {
		t.Error("onTimeout handler not parsed")
	}
}

func TestParseRejectsOversizedSource(t *testing.T) {
	src := []byte(`{"name": "big", "description": "`)
	src = append(src, []byte(strings.Repeat("x", MaxSourceSize))...)
	src = append(src, []byte(`", "root": {"type": "sequence"}}`)...)

	_, err := Parse(src)
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != KindInvalidDocument {
		t.Errorf("expected kind %q, got %q", KindInvalidDocument, pe.Kind)
	}
}

func TestParseRejectsNonWorkflowDocument(t *testing.T) {
	_, err := Parse([]byte(`{"steps": []}`))
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != KindInvalidDocument {
		t.Errorf("expected kind %q, got %q", KindInvalidDocument, pe.Kind)
	}
}
