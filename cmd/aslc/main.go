// Package main is the entry point for the aslc workflow plan compiler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/api"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/compiler"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/sfn"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/store"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/tools"
	"github.com/lemonberrylabs/asl-workflow-compiler/pkg/validator"
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aslc",
	Short: "Workflow plan to Amazon States Language compiler",
}

var compileCmd = &cobra.Command{
	Use:   "compile <plan-file>",
	Short: "Compile a workflow plan into a state machine definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compilation REST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("aslc version {{.Version}}\n")

	compileCmd.Flags().String("tools", "", "Tool registry YAML/JSON file (env TOOLS_FILE)")
	compileCmd.Flags().String("out-dir", ".", "Directory for generated artifacts")
	compileCmd.Flags().String("validate-endpoint", "", "Step Functions endpoint for definition validation (env SFN_ENDPOINT)")

	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().String("tools", "", "Tool registry YAML/JSON file (env TOOLS_FILE)")
	serveCmd.Flags().String("validate-endpoint", "", "Step Functions endpoint for definition validation (env SFN_ENDPOINT)")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRegistry(cmd *cobra.Command) (*tools.Registry, error) {
	path := os.Getenv("TOOLS_FILE")
	if v, _ := cmd.Flags().GetString("tools"); v != "" {
		path = v
	}
	if path == "" {
		return tools.New(nil), nil
	}
	return tools.Load(path)
}

func runCompile(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry(cmd)
	if err != nil {
		return fmt.Errorf("loading tool registry: %w", err)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading plan: %w", err)
	}

	wf, errs := validator.ValidateSource(source, registry)
	if len(errs) > 0 {
		for _, e := range errs {
			log.Printf("Error: %v", e)
		}
		return fmt.Errorf("plan has %d validation error(s)", len(errs))
	}

	result, err := compiler.New(registry, compiler.Options{}).Compile(wf)
	if err != nil {
		return fmt.Errorf("compiling plan: %w", err)
	}

	definition, err := result.Program.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encoding program: %w", err)
	}

	endpoint := os.Getenv("SFN_ENDPOINT")
	if v, _ := cmd.Flags().GetString("validate-endpoint"); v != "" {
		endpoint = v
	}
	if endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		vr, err := sfn.NewClient(endpoint).ValidateDefinition(ctx, string(definition))
		if err != nil {
			return fmt.Errorf("validating definition: %w", err)
		}
		for _, d := range vr.Diagnostics {
			log.Printf("%s %s: %s", d.Severity, d.Code, d.Message)
		}
		if !vr.OK() {
			return fmt.Errorf("definition rejected by validation endpoint")
		}
		log.Printf("Definition accepted by %s", endpoint)
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	machinePath := filepath.Join(outDir, "state_machine.asl.json")
	if err := os.WriteFile(machinePath, definition, 0o644); err != nil {
		return fmt.Errorf("writing definition: %w", err)
	}

	input, err := json.MarshalIndent(result.InputTemplate, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding input template: %w", err)
	}
	inputPath := filepath.Join(outDir, "exec_input.json")
	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return fmt.Errorf("writing input template: %w", err)
	}

	log.Printf("Compiled %q: %d states", wf.Name, len(result.Program.States))
	log.Printf("Wrote %s", machinePath)
	log.Printf("Wrote %s", inputPath)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	registry, err := loadRegistry(cmd)
	if err != nil {
		return fmt.Errorf("loading tool registry: %w", err)
	}

	endpoint := os.Getenv("SFN_ENDPOINT")
	if v, _ := cmd.Flags().GetString("validate-endpoint"); v != "" {
		endpoint = v
	}
	var sfnClient *sfn.Client
	if endpoint != "" {
		sfnClient = sfn.NewClient(endpoint)
		log.Printf("Definition validation endpoint: %s", endpoint)
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	server := api.New(store.New(), registry, sfnClient)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down compiler server...")
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Compiler server listening on %s (%d tool(s) registered)", addr, registry.Len())
	return server.Listen(addr)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
