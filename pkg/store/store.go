// Package store provides in-memory storage for compilation results.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/asl"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/validator"
)

// CompilationState represents the state of a stored compilation.
type CompilationState string

const (
	CompilationSucceeded CompilationState = "SUCCEEDED"
	CompilationFailed    CompilationState = "FAILED"
)

// Compilation represents one compilation of a workflow plan.
type Compilation struct {
	ID            string                 `json:"id"`
	State         CompilationState       `json:"state"`
	WorkflowName  string                 `json:"workflowName,omitempty"`
	SourceCode    string                 `json:"sourceContents"`
	Program       *asl.Program           `json:"program,omitempty"`
	InputTemplate map[string]interface{} `json:"inputTemplate,omitempty"`
	Errors        []*validator.Error     `json:"errors,omitempty"`
	RevisionID    string                 `json:"revisionId"`
	CreateTime    time.Time              `json:"createTime"`
	UpdateTime    time.Time              `json:"updateTime"`
}

// Store is a thread-safe in-memory storage for compilations.
type Store struct {
	mu           sync.RWMutex
	compilations map[string]*Compilation

	// Counter for revision IDs
	revCounter int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		compilations: make(map[string]*Compilation),
	}
}

// CreateCompilation stores a new compilation result.
func (s *Store) CreateCompilation(id string, comp *Compilation) (*Compilation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.compilations[id]; exists {
		return nil, fmt.Errorf("compilation '%s' already exists", id)
	}

	s.revCounter++
	now := time.Now()
	comp.ID = id
	comp.RevisionID = fmt.Sprintf("%06d-000", s.revCounter)
	comp.CreateTime = now
	comp.UpdateTime = now
	s.compilations[id] = comp
	return comp, nil
}

// GetCompilation retrieves a compilation by ID.
func (s *Store) GetCompilation(id string) (*Compilation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comp, ok := s.compilations[id]
	if !ok {
		return nil, fmt.Errorf("compilation '%s' not found", id)
	}
	return comp, nil
}

// ListCompilations returns all stored compilations.
func (s *Store) ListCompilations() []*Compilation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Compilation, 0, len(s.compilations))
	for _, comp := range s.compilations {
		result = append(result, comp)
	}
	return result
}

// DeleteCompilation removes a compilation.
func (s *Store) DeleteCompilation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.compilations[id]; !ok {
		return fmt.Errorf("compilation '%s' not found", id)
	}
	delete(s.compilations, id)
	return nil
}
