package validator

import (
	"testing"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/tools"
)

func testRegistry() *tools.Registry {
	return tools.New([]tools.Tool{
		{
			Name:     "fetch_order",
			Resource: "arn:aws:lambda:us-west-2:000000000000:function:FetchOrder",
			Parameters: []tools.Parameter{
				{Name: "order_id", Type: "string", Required: true},
			},
		},
		{
			Name:     "send_email",
			Resource: "arn:aws:lambda:us-west-2:000000000000:function:SendEmail",
			Parameters: []tools.Parameter{
				{Name: "to"}, {Name: "subject"}, {Name: "body"},
			},
		},
		{
			Name:     "alert_ops",
			Resource: "arn:aws:lambda:us-west-2:000000000000:function:AlertOps",
		},
	})
}

func validate(t *testing.T, src string) []*Error {
	t.Helper()
	_, errs := ValidateSource([]byte(src), testRegistry())
	return errs
}

func requireKinds(t *testing.T, errs []*Error, kinds ...string) {
	t.Helper()
	if len(errs) != len(kinds) {
		t.Fatalf("expected %d error(s), got %d: %v", len(kinds), len(errs), errs)
	}
	for i, kind := range kinds {
		if errs[i].Kind != kind {
			t.Errorf("error %d: expected kind %q, got %q (%v)", i, kind, errs[i].Kind, errs[i])
		}
	}
}

func TestValidateCleanPlan(t *testing.T) {
	errs := validate(t, `{
  "name": "order-flow",
  "description": "Collect an order ID and fetch the order",
  "root": {
    "type": "sequence",
    "steps": [
      {
        "type": "user_input",
        "prompt": "Which order?",
        "outputVariable": "order_id"
      },
      {
        "type": "tool_call",
        "toolName": "fetch_order",
        "parameters": {"order_id": "{% $order_id %}"},
        "outputVariable": "order"
      }
    ]
  }
}`)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateDegenerateContainer(t *testing.T) {
	errs := validate(t, `{
  "name": "wrapper",
  "description": "sequence with one step",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "tool_call", "toolName": "alert_ops", "parameters": {}}
    ]
  }
}`)
	requireKinds(t, errs, KindDegenerateContainer)
}

func TestValidateEmptyContainer(t *testing.T) {
	errs := validate(t, `{
  "name": "empty",
  "description": "sequence with no steps",
  "root": {"type": "sequence", "steps": []}
}`)
	requireKinds(t, errs, KindDegenerateContainer)
}

func TestValidateUnknownTool(t *testing.T) {
	errs := validate(t, `{
  "name": "bad-tool",
  "description": "tool not in registry",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "tool_call", "toolName": "alert_ops", "parameters": {}},
      {"type": "tool_call", "toolName": "launch_rocket", "parameters": {"target": "moon"}}
    ]
  }
}`)
	requireKinds(t, errs, KindUnknownTool)
}

func TestValidateUnknownParameter(t *testing.T) {
	errs := validate(t, `{
  "name": "bad-param",
  "description": "parameter not declared by the tool",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "tool_call", "toolName": "alert_ops", "parameters": {}},
      {"type": "tool_call", "toolName": "fetch_order", "parameters": {"order_number": "42"}}
    ]
  }
}`)
	requireKinds(t, errs, KindUnknownParameter)
}

func TestValidateUndefinedVariable(t *testing.T) {
	errs := validate(t, `{
  "name": "missing-var",
  "description": "parameter references a variable nobody defined",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "tool_call", "toolName": "alert_ops", "parameters": {}},
      {"type": "tool_call", "toolName": "fetch_order", "parameters": {"order_id": "{% $order_id %}"}}
    ]
  }
}`)
	requireKinds(t, errs, KindUndefinedVariable)
}

func TestValidateDisallowedConditionOperand(t *testing.T) {
	// A bare string on the left of a comparison is not a variable reference.
	errs := validate(t, `{
  "name": "bad-operand",
  "description": "left operand is not a reference",
  "root": {
    "type": "branch",
    "condition": {"type": "comparison", "operator": "==", "left": "order_status", "right": "shipped"},
    "ifTrue": {"type": "tool_call", "toolName": "alert_ops", "parameters": {}},
    "ifFalse": {"type": "tool_call", "toolName": "alert_ops", "parameters": {}}
  }
}`)
	requireKinds(t, errs, KindDisallowedExpressionSyntax)
}

func TestValidateDisallowedParameterSyntax(t *testing.T) {
	errs := validate(t, `{
  "name": "bad-expr",
  "description": "function calls are not allowed in parameter expressions",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "user_input", "prompt": "Order?", "outputVariable": "order_id"},
      {"type": "tool_call", "toolName": "fetch_order", "parameters": {"order_id": "{% $uppercase($order_id) %}"}}
    ]
  }
}`)
	requireKinds(t, errs, KindDisallowedExpressionSyntax)
}

func TestValidateBranchArmsDoNotLeak(t *testing.T) {
	// A variable assigned inside one branch arm is not guaranteed after
	// the branch, so later references must fail.
	errs := validate(t, `{
  "name": "branch-leak",
  "description": "reference to a variable only one arm defines",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "user_input", "prompt": "Status?", "outputVariable": "status"},
      {
        "type": "branch",
        "condition": {"type": "comparison", "operator": "==", "left": "{% $status %}", "right": "open"},
        "ifTrue": {"type": "tool_call", "toolName": "fetch_order", "parameters": {}, "outputVariable": "order"},
        "ifFalse": {"type": "tool_call", "toolName": "alert_ops", "parameters": {}}
      },
      {"type": "tool_call", "toolName": "send_email", "parameters": {"body": "{% $order %}"}}
    ]
  }
}`)
	requireKinds(t, errs, KindUndefinedVariable)
}

func TestValidateParallelOutputsMergeAfterJoin(t *testing.T) {
	errs := validate(t, `{
  "name": "parallel-merge",
  "description": "both branch outputs usable after the join",
  "root": {
    "type": "sequence",
    "steps": [
      {
        "type": "parallel",
        "branches": [
          {"type": "tool_call", "toolName": "fetch_order", "parameters": {}, "outputVariable": "order"},
          {"type": "user_input", "prompt": "Recipient?", "outputVariable": "recipient"}
        ]
      },
      {"type": "tool_call", "toolName": "send_email", "parameters": {"to": "{% $recipient %}", "body": "{% $order %}"}}
    ]
  }
}`)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateParallelBranchesIsolated(t *testing.T) {
	errs := validate(t, `{
  "name": "parallel-isolated",
  "description": "one branch reads another branch's output",
  "root": {
    "type": "parallel",
    "branches": [
      {"type": "tool_call", "toolName": "fetch_order", "parameters": {}, "outputVariable": "order"},
      {"type": "tool_call", "toolName": "send_email", "parameters": {"body": "{% $order %}"}}
    ]
  }
}`)
	requireKinds(t, errs, KindUndefinedVariable)
}

func TestValidateErrorHandlerSeesOutput(t *testing.T) {
	// The failed call's output variable is in scope for its handler.
	errs := validate(t, `{
  "name": "handler-scope",
  "description": "error handler reads the output variable",
  "root": {
    "type": "tool_call",
    "toolName": "fetch_order",
    "parameters": {},
    "outputVariable": "order",
    "errorHandler": {"type": "tool_call", "toolName": "send_email", "parameters": {"body": "{% $order %}"}}
  }
}`)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateWaitEntityIDBeforeOutput(t *testing.T) {
	// entityId resolves against the scope before the node's own output
	// variable is added, so self-reference fails.
	errs := validate(t, `{
  "name": "wait-self-ref",
  "description": "entityId references the node's own output",
  "root": {
    "type": "wait_for_event",
    "eventType": "payment_received",
    "eventSource": "billing",
    "entityId": "{% $payment %}",
    "outputVariable": "payment"
  }
}`)
	requireKinds(t, errs, KindUndefinedVariable)
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	errs := validate(t, `{
  "name": "many-problems",
  "description": "several independent findings in one pass",
  "root": {
    "type": "sequence",
    "steps": [
      {"type": "tool_call", "toolName": "launch_rocket", "parameters": {}},
      {"type": "tool_call", "toolName": "fetch_order", "parameters": {"order_number": "42", "order_id": "{% $oid %}"}}
    ]
  }
}`)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	seen := map[string]bool{}
	for _, e := range errs {
		seen[e.Kind] = true
	}
	for _, kind := range []string{KindUnknownTool, KindUnknownParameter, KindUndefinedVariable} {
		if !seen[kind] {
			t.Errorf("expected a %s finding", kind)
		}
	}
}

func TestValidateSourceParseFailure(t *testing.T) {
	wf, errs := ValidateSource([]byte(`{
  "name": "broken",
  "description": "bad embedded JSON",
  "root": {"type": "tool_call", "toolName": "alert_ops", "parameters": "{oops"}
}`), testRegistry())
	if wf != nil {
		t.Error("expected no workflow on parse failure")
	}
	requireKinds(t, errs, KindMalformedEmbeddedJSON)
}
