// steno-notes is the note and transcript editor for steno sessions.
//
// Usage:
//
//	steno-notes [-dir path] <command> [flags] [args]
//
// Commands: new, list, edit, listen, export, mcp.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jwulff/steno/notes/internal/badgerstore"
	"github.com/jwulff/steno/notes/internal/config"
	"github.com/jwulff/steno/notes/internal/db"
	"github.com/jwulff/steno/notes/internal/logging"
	"github.com/jwulff/steno/notes/internal/session"
)

// env is what every command runs with.
type env struct {
	cfg     *config.Config
	backend session.Backend
	log     *logging.File
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"new", "new [-title text]                create a note and print its id", runNew},
	{"list", "list                             list notes, newest first", runList},
	{"edit", "edit <id>                        open a note in the editor", runEdit},
	{"listen", "listen [-start] <id>             record daemon words into a note", runListen},
	{"export", "export [-o file] <id>            write a note as Markdown", runExport},
	{"mcp", "mcp                              serve notes to MCP clients on stdio", runMCP},
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: steno-notes [-dir path] <command> [flags] [args]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	dir := flag.String("dir", config.DefaultDir(), "data directory holding config.yaml")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == flag.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	e, err := setup(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = cmd.run(context.Background(), e, flag.Args()[1:])
	e.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config, opens the log file and the configured backend.
func setup(dir string) (*env, error) {
	if err := config.Init(dir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	logFile, err := logging.Open(cfg.Log.File)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	logFile.Printf("steno-notes: %s store at %s", cfg.Storage.Driver, cfg.Storage.Path)
	return &env{cfg: cfg, backend: backend, log: logFile}, nil
}

func openBackend(cfg *config.Config) (session.Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverBadger:
		return badgerstore.Open(cfg.Storage.Path)
	default:
		return db.Open(cfg.Storage.Path)
	}
}

func (e *env) close() {
	if err := e.backend.Close(); err != nil {
		e.log.Printf("steno-notes: close store: %v", err)
	}
	e.log.Close()
}
