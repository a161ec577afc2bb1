// Package api implements the REST API for compiling and validating
// workflow plans.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/compiler"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/sfn"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/store"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/tools"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/validator"
)

// Server is the API server for the plan compiler.
type Server struct {
	app      *fiber.App
	store    *store.Store
	registry *tools.Registry
	compiler *compiler.Compiler
	sfn      *sfn.Client // optional external definition validation
}

// New creates a new API server against a tool registry. A non-nil sfn
// client enables external definition validation on compile requests.
func New(s *store.Store, registry *tools.Registry, sfnClient *sfn.Client) *Server {
	srv := &Server{
		store:    s,
		registry: registry,
		compiler: compiler.New(registry, compiler.Options{}),
		sfn:      sfnClient,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Compilations API
	app.Post("/v1/compilations", srv.createCompilation)
	app.Get("/v1/compilations/:id", srv.getCompilation)
	app.Get("/v1/compilations", srv.listCompilations)
	app.Delete("/v1/compilations/:id", srv.deleteCompilation)

	// Validation API
	app.Post("/v1/plans\\:validate", srv.validatePlan)

	// Tools API
	app.Get("/v1/tools", srv.listTools)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Compilation Handlers ---

type compileRequest struct {
	SourceContents string `json:"sourceContents"`
	WorkflowName   string `json:"workflowName"`
}

func (s *Server) createCompilation(c *fiber.Ctx) error {
	// Copy the query value: fiber's zero-copy strings are only valid for
	// the lifetime of the handler, but this ID is stored as a map key.
	compilationID := utils.CopyString(c.Query("compilationId"))
	if compilationID == "" {
		return errorResponse(c, 400, "INVALID_ARGUMENT", "compilationId query parameter is required")
	}

	var req compileRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return errorResponse(c, 400, "INVALID_ARGUMENT", "sourceContents is required")
	}

	wf, errs := validator.ValidateSource([]byte(req.SourceContents), s.registry)
	if len(errs) > 0 {
		comp := &store.Compilation{
			State:      store.CompilationFailed,
			SourceCode: req.SourceContents,
			Errors:     errs,
		}
		stored, err := s.store.CreateCompilation(compilationID, comp)
		if err != nil {
			return errorResponse(c, 409, "ALREADY_EXISTS", err.Error())
		}
		return c.Status(422).JSON(compilationToJSON(stored))
	}

	result, err := s.compiler.Compile(wf)
	if err != nil {
		return errorResponse(c, 500, "INTERNAL", fmt.Sprintf("compilation failed: %v", err))
	}

	if s.sfn != nil {
		if err := s.validateDefinition(c.Context(), result); err != nil {
			return errorResponse(c, 502, "UNAVAILABLE", err.Error())
		}
	}

	comp := &store.Compilation{
		State:         store.CompilationSucceeded,
		WorkflowName:  wf.Name,
		SourceCode:    req.SourceContents,
		Program:       result.Program,
		InputTemplate: result.InputTemplate,
	}
	stored, err := s.store.CreateCompilation(compilationID, comp)
	if err != nil {
		return errorResponse(c, 409, "ALREADY_EXISTS", err.Error())
	}

	return c.Status(200).JSON(compilationToJSON(stored))
}

func (s *Server) validateDefinition(ctx context.Context, result *compiler.Result) error {
	definition, err := result.Program.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encoding program: %w", err)
	}
	vr, err := s.sfn.ValidateDefinition(ctx, string(definition))
	if err != nil {
		return fmt.Errorf("definition validation unavailable: %w", err)
	}
	if !vr.OK() {
		msgs := make([]string, len(vr.Diagnostics))
		for i, d := range vr.Diagnostics {
			msgs[i] = fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
		}
		return fmt.Errorf("definition rejected: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func (s *Server) getCompilation(c *fiber.Ctx) error {
	comp, err := s.store.GetCompilation(c.Params("id"))
	if err != nil {
		return errorResponse(c, 404, "NOT_FOUND", err.Error())
	}
	return c.JSON(compilationToJSON(comp))
}

func (s *Server) listCompilations(c *fiber.Ctx) error {
	compilations := s.store.ListCompilations()

	items := make([]fiber.Map, len(compilations))
	for i, comp := range compilations {
		items[i] = compilationToJSON(comp)
	}

	return c.JSON(fiber.Map{
		"compilations": items,
	})
}

func (s *Server) deleteCompilation(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteCompilation(id); err != nil {
		return errorResponse(c, 404, "NOT_FOUND", err.Error())
	}
	return c.JSON(fiber.Map{
		"id":      id,
		"deleted": true,
	})
}

// --- Validation Handler ---

func (s *Server) validatePlan(c *fiber.Ctx) error {
	var req compileRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return errorResponse(c, 400, "INVALID_ARGUMENT", "sourceContents is required")
	}

	wf, errs := validator.ValidateSource([]byte(req.SourceContents), s.registry)
	if len(errs) > 0 {
		return c.JSON(fiber.Map{
			"valid":  false,
			"errors": errs,
		})
	}

	return c.JSON(fiber.Map{
		"valid":        true,
		"workflowName": wf.Name,
	})
}

// --- Tools Handler ---

func (s *Server) listTools(c *fiber.Ctx) error {
	names := s.registry.Names()

	items := make([]fiber.Map, 0, len(names))
	for _, name := range names {
		tool, _ := s.registry.Lookup(name)
		items = append(items, fiber.Map{
			"name":        tool.Name,
			"description": tool.Description,
			"resource":    tool.Resource,
			"parameters":  tool.Parameters,
		})
	}

	return c.JSON(fiber.Map{
		"tools": items,
	})
}

// --- Helpers ---

func errorResponse(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func compilationToJSON(comp *store.Compilation) fiber.Map {
	result := fiber.Map{
		"id":         comp.ID,
		"state":      comp.State,
		"revisionId": comp.RevisionID,
		"createTime": comp.CreateTime.Format(time.RFC3339),
		"updateTime": comp.UpdateTime.Format(time.RFC3339),
	}

	if comp.WorkflowName != "" {
		result["workflowName"] = comp.WorkflowName
	}
	if comp.Program != nil {
		result["program"] = comp.Program
	}
	if comp.InputTemplate != nil {
		result["inputTemplate"] = comp.InputTemplate
	}
	if len(comp.Errors) > 0 {
		result["errors"] = comp.Errors
	}

	return result
}
