// lwtt is a lightweight time tracker. Without a command it opens the
// interactive task window; commands list and edit the task document
// from scripts, and publish the timesheet to Google Calendar.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/harrisonrobin/lwtt/pkg/config"
	"github.com/harrisonrobin/lwtt/pkg/tui"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dataFile   string
	configPath string
	logLevel   string
	logOutput  string
	calendar   string
	format     string
	day        string
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("lwtt", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.dataFile, "data", "", "task data file (default: ~/.config/lwtt/data.json)")
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: ~/.config/lwtt/config.json)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "write JSON log records to this file while the window is open")
	flagSet.StringVar(&opts.calendar, "calendar", "", "Google Calendar to publish to (overrides config)")
	flagSet.StringVar(&opts.format, "format", "text", "list output: text, json or yaml")
	flagSet.StringVar(&opts.day, "day", "", "publish day as YYYY-MM-DD (default: today)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("data") {
		cfg.DataFile = opts.dataFile
	}
	if flagSet.Changed("calendar") {
		cfg.Calendar = opts.calendar
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return runWindow(cfg, level, opts.logOutput)
	}

	e := &env{
		cfg:        cfg,
		configPath: opts.configPath,
		logger:     newCommandLogger(stderr, level),
		stdout:     stdout,
		format:     opts.format,
		day:        opts.day,
	}
	return e.dispatch(rest[0], rest[1:])
}

// newCommandLogger writes text records when w is a terminal and JSON
// records otherwise.
func newCommandLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// runWindow opens the interactive window. Logging to stderr would
// corrupt the alternate screen, so records go to logOutput or nowhere.
func runWindow(cfg *config.Config, level slog.Level, logOutput string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logOutput != "" {
		f, err := os.OpenFile(logOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("cannot open log output: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	var (
		mu      sync.Mutex
		program *tea.Program
		pending []error
	)
	// The session reports with its lock held, so delivery must not
	// wait for the update loop.
	report := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if program == nil {
			pending = append(pending, err)
			return
		}
		go program.Send(tui.ErrorMsg{Err: err})
	}

	session, err := openSession(cfg, logger, true, report)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(session), tea.WithAltScreen())
	mu.Lock()
	program = p
	for _, err := range pending {
		go p.Send(tui.ErrorMsg{Err: err})
	}
	pending = nil
	mu.Unlock()

	_, runErr := p.Run()
	if err := session.Close(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `lwtt is a lightweight time tracker.

Usage:
  lwtt [flags]                  open the task window
  lwtt [flags] COMMAND [ARGS]

Commands:
%s
ROW is the 1-based position shown by "lwtt list".

Flags:
%s`, commandHelp(), flagSet.FlagUsages())
}
