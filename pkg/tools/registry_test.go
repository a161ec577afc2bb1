package tools

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseBareList(t *testing.T) {
	data := []byte(`
- name: fetch_order
  description: Fetch an order by ID
  resource: arn:aws:lambda:us-west-2:000000000000:function:FetchOrder
  parameters:
    - name: order_id
      type: string
      required: true
- name: send_email
  resource: arn:aws:lambda:us-west-2:000000000000:function:SendEmail
  parameters:
    - name: to
    - name: subject
    - name: body
`)

	r, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 tools, got %d", r.Len())
	}

	tool, ok := r.Lookup("fetch_order")
	if !ok {
		t.Fatal("fetch_order not found")
	}
	if !tool.HasParameter("order_id") {
		t.Error("expected parameter 'order_id'")
	}
	if tool.HasParameter("customer_id") {
		t.Error("did not expect parameter 'customer_id'")
	}
}

func TestParseToolsMapping(t *testing.T) {
	data := []byte(`{"tools": [{"name": "ping", "resource": "arn:ping"}]}`)

	r, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Resource("ping") != "arn:ping" {
		t.Errorf("unexpected resource: %q", r.Resource("ping"))
	}
	if r.Resource("missing") != "" {
		t.Error("expected empty resource for unknown tool")
	}
}

func TestParseEmptyRegistry(t *testing.T) {
	if _, err := Parse([]byte(`{}`)); err == nil {
		t.Error("expected an error for an empty registry")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	content := []byte("- name: ping\n  resource: arn:ping\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Lookup("ping"); !ok {
		t.Error("ping not found after load")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNamesSorted(t *testing.T) {
	r := New([]Tool{
		{Name: "zeta", Resource: "arn:z"},
		{Name: "alpha", Resource: "arn:a"},
		{Name: "mid", Resource: "arn:m"},
	})

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
