// Command storax is the thin CLI facade over the engine (SPEC_FULL §4.15):
// it parses arguments and calls the orchestrator, performing no business
// logic of its own.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/babarot/storax/internal/config"
	"github.com/babarot/storax/internal/logging"
	"github.com/babarot/storax/internal/orchestrator"
	"github.com/jessevdk/go-flags"
)

// GlobalOption carries flags shared by every subcommand. go-flags
// populates it during Parse, before any subcommand's Execute runs.
type GlobalOption struct {
	Config string `long:"config" description:"Path to config file" default:""`
	Debug  bool   `long:"debug" description:"Enable debug-level logging"`
}

var opt GlobalOption

// orch is built lazily on first use, once opt has been populated by
// parser.Parse() and a subcommand's Execute is running.
var orch = sync.OnceValues(func() (*orchestrator.Orchestrator, error) {
	level := slog.LevelInfo
	if opt.Debug {
		level = slog.LevelDebug
	}
	logging.Init(logging.WithLevel(level))

	cfg, err := config.Load(opt.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	o, err := orchestrator.New(cfg, orchestrator.Options{})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return o, nil
})

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storax:", err)
		os.Exit(1)
	}
}

func run() error {
	parser := flags.NewParser(&opt, flags.Default)
	parser.Name = "storax"

	parser.AddCommand("create", "Create a file or directory", "", &createCmd{})
	parser.AddCommand("rename", "Rename a node", "", &renameCmd{})
	parser.AddCommand("mv", "Move a node", "", &moveCmd{})
	parser.AddCommand("cp", "Copy a node", "", &copyCmd{})
	parser.AddCommand("rm", "Trash (or permanently delete) a node", "", &rmCmd{})
	parser.AddCommand("ls", "List a directory (or the trash)", "", &lsCmd{})
	parser.AddCommand("restore", "Restore a trash entry", "", &restoreCmd{})
	parser.AddCommand("empty-trash", "Permanently delete every trash entry", "", &emptyTrashCmd{})
	parser.AddCommand("undo", "Undo the last operation", "", &undoCmd{})
	parser.AddCommand("redo", "Redo the last undone operation", "", &redoCmd{})
	parser.AddCommand("recover", "Replay pending journal/WAL recovery", "", &recoverCmd{})

	_, err := parser.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}
	return nil
}
