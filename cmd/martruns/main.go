package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/db"
	"github.com/martruns/martruns/internal/logging"
	"github.com/martruns/martruns/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"say": true, "parse": true, "suggest": true, "listen": true,
	"runs": true, "show": true, "create": true, "update": true,
	"complete": true, "duplicate": true, "delete": true, "stats": true,
	"export": true, "import": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
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
                       _
   _ __ ___   __ _ _ __| |_ _ __ _   _ _ __  ___
  | '_ ' _ \ / _' | '__| __| '__| | | | '_ \/ __|
  | | | | | | (_| | |  | |_| |  | |_| | | | \__ \
  |_| |_| |_|\__,_|_|   \__|_|   \__,_|_| |_|___/

  Voice-driven shopping lists

  Usage: martruns <command> [options]
         martruns say add milk to my list
         martruns --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && !isCLIMode(os.Args) && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'martruns --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".martruns")

	cwd, err := os.Getwd()
	if err != nil {
		fatal("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fatal("%v", err)
	}
	defer logger.Sync() //nolint:errcheck

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	d := &deps{
		store:  ops.NewStore(database, cfg),
		cfg:    cfg,
		logger: logger,
	}

	if isCLIMode(os.Args) {
		if err := newCLIApp(d).Run(os.Args); err != nil {
			logger.Debug("command failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// MCP server mode (default)
	if err := runMCP(d); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
