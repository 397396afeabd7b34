package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	prompt  = "Process Watcher CLI > "
	divider = "=================================================="
)

const shellHelp = `Commands:
  limit <value>           Set the maximum number of processes to collect
  output <format>         Set the output format (json, csv, yaml)
  file <path>             Set the output path (empty for console)
  verbose                 Toggle verbose diagnostics
  advanced                Toggle advanced output fields
  show denied             Toggle details of denied processes
  include system info     Toggle the host summary
  collect data            Collect a snapshot and write it
  visualization help      Show help for visualizing the output
  show parameters         Show the current settings
  clear                   Clear the console
  help                    Show this help message
  exit                    Exit the application
`

// shell is the interactive prompt. Each line is one command; settings changed
// here apply to the next "collect data".
type shell struct {
	app *app
	in  *bufio.Scanner
	out io.Writer
}

func newShell(a *app, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, in: bufio.NewScanner(in), out: out}
}

func (s *shell) run(ctx context.Context) error {
	s.showParameters()
	fmt.Fprintln(s.out, divider)
	fmt.Fprintln(s.out, "Process Watcher CLI started. Type 'exit' to quit. Type 'help' for help.")
	fmt.Fprintln(s.out, "Type 'show parameters' to see all parameters.")
	fmt.Fprintln(s.out, divider)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, prompt)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		if quit := s.handle(ctx, s.in.Text()); quit {
			return nil
		}
	}
}

// handle executes one command line and reports whether the shell should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd := strings.ToLower(strings.Join(strings.Fields(line), " "))
	cfg := s.app.cfg

	switch {
	case cmd == "":
	case cmd == "exit" || cmd == "quit":
		fmt.Fprintln(s.out, "Exiting Process Watcher CLI...")
		return true
	case cmd == "visualization help" || cmd == "help visualization":
		fmt.Fprint(s.out, visualizationHelp)
	case cmd == "help":
		fmt.Fprint(s.out, shellHelp)
	case cmd == "limit" || strings.HasPrefix(cmd, "limit "):
		s.setLimit(argument(line))
	case cmd == "output" || strings.HasPrefix(cmd, "output "):
		s.setOutput(argument(line))
	case cmd == "file" || strings.HasPrefix(cmd, "file "):
		cfg.File = argument(line)
		if cfg.File == "" {
			fmt.Fprintln(s.out, "Output file cleared, writing to console.")
		} else {
			fmt.Fprintf(s.out, "Output file set to: %s\n", cfg.File)
		}
	case cmd == "verbose":
		cfg.Verbose = !cfg.Verbose
		s.app.applyLogging()
		fmt.Fprintf(s.out, "Verbose mode %s.\n", enabled(cfg.Verbose))
	case cmd == "advanced":
		cfg.Advanced = !cfg.Advanced
		fmt.Fprintf(s.out, "Advanced output %s.\n", enabled(cfg.Advanced))
	case cmd == "show denied":
		cfg.ShowDenied = !cfg.ShowDenied
		fmt.Fprintf(s.out, "Showing denied processes %s.\n", enabled(cfg.ShowDenied))
	case cmd == "include system info":
		cfg.IncludeSystemInfo = !cfg.IncludeSystemInfo
		fmt.Fprintf(s.out, "Including system info %s.\n", enabled(cfg.IncludeSystemInfo))
	case cmd == "collect data":
		if !s.app.validate(s.out) {
			return false
		}
		if err := s.app.collectAndWrite(ctx); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	case cmd == "show parameters":
		s.showParameters()
	case cmd == "clear":
		fmt.Fprint(s.out, "\033[H\033[2J")
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for available commands.")
	}
	return false
}

func (s *shell) setLimit(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Error: Missing limit value.")
		fmt.Fprintln(s.out, "Usage: limit <value>")
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		fmt.Fprintf(s.out, "Error: limit must be a positive integer, got %q.\n", arg)
		return
	}
	s.app.cfg.Limit = n
	fmt.Fprintf(s.out, "Limit set to: %d\n", n)
}

func (s *shell) setOutput(arg string) {
	format := strings.ToLower(arg)
	switch format {
	case "json", "csv", "yaml":
		s.app.cfg.Output = format
		fmt.Fprintf(s.out, "Output format set to: %s\n", format)
	default:
		fmt.Fprintln(s.out, "Error: Invalid output format. Use 'json', 'csv' or 'yaml'.")
	}
}

func (s *shell) showParameters() {
	cfg := s.app.cfg
	file := cfg.File
	if file == "" {
		file = "console"
	}
	fmt.Fprintf(s.out, "Limit: %d\n", cfg.Limit)
	fmt.Fprintf(s.out, "Output format: %s\n", cfg.Output)
	fmt.Fprintf(s.out, "Output file: %s\n", file)
	fmt.Fprintf(s.out, "Verbose: %t\n", cfg.Verbose)
	fmt.Fprintf(s.out, "Show denied: %t\n", cfg.ShowDenied)
	fmt.Fprintf(s.out, "Include system info: %t\n", cfg.IncludeSystemInfo)
	fmt.Fprintf(s.out, "Advanced: %t\n", cfg.Advanced)
	fmt.Fprintf(s.out, "Workers: %d\n", cfg.Workers)
}

// argument returns everything after the first word of line, case preserved.
func argument(line string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.TrimSpace(rest)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
