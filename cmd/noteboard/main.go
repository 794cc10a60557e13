package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/mcp"
	"github.com/hpungsan/noteboard/internal/metrics"
	"github.com/hpungsan/noteboard/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"save": true, "show": true, "list": true, "delete": true,
	"import": true, "share": true, "attach": true, "export": true, "folder": true,
	"sync": true, "push": true, "login": true, "logout": true,
	"status": true, "serve": true,
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
                  _       _                         _
  _ __   ___  ___| |_ ___| |__   ___   __ _ _ __ __| |
 | '_ \ / _ \/ _ \ __/ _ \ '_ \ / _ \ / _' | '__/ _' |
 | | | | (_) |  __/ ||  __/ |_) | (_) | (_| | | | (_| |
 |_| |_|\___/ \___|\__\___|_.__/ \___/ \__,_|_|  \__,_|

  Notes on your machine, mirrored to your storage

  Usage: noteboard <command> [options]
         noteboard --help

  MCP server mode requires piped input.`)
}

// logOptions builds logger options. In MCP mode stdout carries the protocol,
// so logs go to the file only.
func logOptions(baseDir string, cfg *config.Config, mcpMode bool) logger.Options {
	opts := logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}
	if opts.File != "" && !filepath.IsAbs(opts.File) {
		opts.File = filepath.Join(baseDir, opts.File)
	}
	if mcpMode {
		if opts.File == "" {
			opts.File = filepath.Join(baseDir, "noteboard.log")
		}
	} else {
		opts.Console = os.Stderr
	}
	return opts
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the board
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	cliMode := isCLIMode()
	if !cliMode && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'noteboard --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory", err)
	}
	baseDir := filepath.Join(homeDir, ".noteboard")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fail("failed to load config", err)
	}

	log, closeLog := logger.New(logOptions(baseDir, cfg, !cliMode))
	defer closeLog()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	m := metrics.New()
	d, closeDB, err := ops.Open(context.Background(), baseDir, cfg, log, m)
	if err != nil {
		fail("failed to open board", err)
	}
	defer closeDB()

	if cliMode {
		app := newCLIApp(d, log, m)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			closeDB()
			closeLog()
			os.Exit(1)
		}
		return
	}

	// MCP server mode (default)
	log.Info("mcp server starting", zap.String("version", Version), zap.String(logger.FieldProvider, d.Provider))
	if err := mcp.Run(d, Version); err != nil {
		log.Error("mcp server stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		closeDB()
		closeLog()
		os.Exit(1)
	}
}
