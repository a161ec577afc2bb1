// Package asl defines the Amazon States Language document types emitted by
// the compiler. Field names and JSON shapes follow the ASL specification so
// the output can be deployed to Step Functions unchanged.
package asl

import "encoding/json"

// State type constants.
const (
	TypeTask     = "Task"
	TypeChoice   = "Choice"
	TypeWait     = "Wait"
	TypeParallel = "Parallel"
	TypePass     = "Pass"
)

// QueryLanguageJSONata is the only query language the compiler emits.
const QueryLanguageJSONata = "JSONata"

// Program is a complete state machine definition.
type Program struct {
	Comment       string            `json:"Comment,omitempty"`
	StartAt       string            `json:"StartAt"`
	QueryLanguage string            `json:"QueryLanguage,omitempty"`
	States        map[string]*State `json:"States"`
}

// MarshalIndent renders the program as the deployable JSON document.
func (p *Program) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// SubProgram is a branch of a Parallel state: its own start state plus
// state map, executed as an isolated sub-machine.
type SubProgram struct {
	StartAt string            `json:"StartAt"`
	States  map[string]*State `json:"States"`
}

// State is one emitted IR unit. It is created during the lowering of exactly
// one plan node; afterwards only Next/End are patched when the owning
// container links it to a sibling.
type State struct {
	Type             string                 `json:"Type"`
	QueryLanguage    string                 `json:"QueryLanguage,omitempty"`
	Comment          string                 `json:"Comment,omitempty"`
	Resource         string                 `json:"Resource,omitempty"`
	Arguments        map[string]interface{} `json:"Arguments,omitempty"`
	Assign           map[string]interface{} `json:"Assign,omitempty"`
	Seconds          int                    `json:"Seconds,omitempty"`
	HeartbeatSeconds int                    `json:"HeartbeatSeconds,omitempty"`
	Choices          []ChoiceRule           `json:"Choices,omitempty"`
	Default          string                 `json:"Default,omitempty"`
	Catch            []Catcher              `json:"Catch,omitempty"`
	Branches         []*SubProgram          `json:"Branches,omitempty"`
	Next             string                 `json:"Next,omitempty"`
	End              bool                   `json:"End,omitempty"`
}

// ChoiceRule is a single conditional transition of a Choice state.
type ChoiceRule struct {
	Condition string `json:"Condition"`
	Next      string `json:"Next"`
}

// Catcher routes matching errors to a handler state.
type Catcher struct {
	ErrorEquals []string `json:"ErrorEquals"`
	Next        string   `json:"Next"`
	Comment     string   `json:"Comment,omitempty"`
}

// Link redirects a terminal state to a successor, clearing its End flag.
func (s *State) Link(next string) {
	s.End = false
	s.Next = next
}
