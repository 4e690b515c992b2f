package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/vessel/internal/blob"
	"github.com/hpungsan/vessel/internal/config"
	"github.com/hpungsan/vessel/internal/env"
	"github.com/hpungsan/vessel/internal/mcp"
	"github.com/hpungsan/vessel/internal/store"
	"github.com/hpungsan/vessel/internal/upload"
	"github.com/hpungsan/vessel/internal/vault"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capsule": true, "memory": true, "upload": true, "event": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  __   _____ ___ ___ ___ _
  \ \ / / __/ __/ __| __| |
   \ V /| _|\__ \__ \ _|| |__
    \_/ |___|___/___/___|____|

  Personal memory preservation service

  Usage: vessel <command> [options]
         vessel --help

  MCP server mode requires piped input.`)
}

// callerIdentity resolves the caller from --as or the environment.
func callerIdentity() vault.Identity {
	for i, arg := range os.Args {
		if arg == "--as" && i+1 < len(os.Args) {
			return vault.Identity(os.Args[i+1])
		}
	}
	if v := os.Getenv("VESSEL_CALLER"); v != "" {
		return vault.Identity(v)
	}
	return ""
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before store init (no store needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".vessel")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled tools in config: %v\n", unknown)
	}

	st, err := store.Open(baseDir, cfg.QuotaBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.DBMaxOpenConns > 0 {
		st.DB().SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		st.DB().SetMaxIdleConns(cfg.DBMaxIdleConns)
	}

	blobs, err := blob.NewFSStore(filepath.Join(baseDir, "blobs"), st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open blob store: %v\n", err)
		os.Exit(1)
	}

	caller := callerIdentity()
	if caller == "" {
		fmt.Fprintf(os.Stderr, "error: caller identity is required (--as <identity> or VESSEL_CALLER)\n")
		os.Exit(1)
	}

	deps := mcp.Deps{
		Env:   env.NewSystem(caller),
		Store: st,
		Blobs: blobs,
		Uploads: upload.NewManager(blobs, upload.Limits{
			MaxSessionsPerCaller: cfg.MaxUploadSessions,
			MaxChunkCount:        cfg.MaxChunkCount,
			MaxChunkBytes:        cfg.MaxChunkBytes,
		}),
		Config:     cfg,
		ExportsDir: filepath.Join(baseDir, "exports"),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(&deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'vessel --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
