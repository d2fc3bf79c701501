// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"pii-redact/internal/config"
	"pii-redact/internal/detector"
	"pii-redact/internal/formatters"
	"pii-redact/internal/help"
	"pii-redact/internal/observability"
	"pii-redact/internal/provenance"
	"pii-redact/internal/redactors"
	"pii-redact/internal/session"
	"pii-redact/internal/suppressions"
	"pii-redact/internal/surface"
	"pii-redact/internal/validators"
	"pii-redact/internal/version"
	"pii-redact/internal/web"

	_ "pii-redact/internal/formatters/csv"
	_ "pii-redact/internal/formatters/json"
	_ "pii-redact/internal/formatters/text"
	_ "pii-redact/internal/formatters/yaml"
)

// commands that operate on a session
var commands = map[string]bool{
	"scan": true, "redact": true, "fill": true, "revert": true,
	"records": true, "clear": true, "serve": true,
}

// allowReason is the default reason recorded for allow list entries
const allowReason = "added from the command line"

// cliFlags holds the parsed command line
type cliFlags struct {
	file          string
	output        string
	configFile    string
	mock          string
	algorithm     string
	format        string
	sessionStore  string
	auditLog      string
	allowList     string
	listen        string
	local         bool
	noPersist     bool
	showOriginals bool
	verbose       bool
	debug         bool
	noColor       bool
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.file, "file", "", "Input file, text or PDF (default: stdin)")
	fs.StringVar(&f.output, "output", "", "Where rewritten text goes (default: the input file, or stdout)")
	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&f.mock, "mock", "", "Static detector fixture (YAML) used instead of the detection service")
	fs.StringVar(&f.algorithm, "algorithm", "", "Redaction algorithm: ascending or descending")
	fs.StringVar(&f.format, "format", "text", "Report format: text, json, yaml, csv")
	fs.StringVar(&f.sessionStore, "session-store", "", "Session database shared between invocations")
	fs.StringVar(&f.auditLog, "audit-log", "", "Path to save the redaction audit log (JSON)")
	fs.StringVar(&f.allowList, "allow-list", "", "Allow list of values never redacted (YAML)")
	fs.StringVar(&f.listen, "listen", "", "Address for serve")
	fs.BoolVar(&f.local, "local", false, "Detect structured PII (emails, phones, cards, SSNs, IPs) offline")
	fs.BoolVar(&f.noPersist, "no-persist", false, "Keep the session in memory only")
	fs.BoolVar(&f.showOriginals, "show-originals", false, "Print original values in reports")
	fs.BoolVar(&f.verbose, "verbose", false, "Include ids, timestamps and the rewritten text in reports")
	fs.BoolVar(&f.debug, "debug", false, "Trace each step on stderr")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	return f
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		help.NewSystem(stderr, !isTerminal(stderr)).ShowGeneralHelp()
		return 2
	}

	command := args[0]
	switch command {
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.Info())
		return 0
	case "help", "-help", "--help", "-h":
		return showHelp(args[1:], stdout)
	case "allow":
		return runAllow(args[1:], stdout, stderr)
	}
	if !commands[command] {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", command)
		fmt.Fprintln(stderr, "Run 'pii-redact help' for usage.")
		return 2
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := registerFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	app, err := newApp(command, flags, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "scan":
		err = app.scan(ctx)
	case "redact":
		err = app.redact(ctx)
	case "fill":
		err = app.fill()
	case "revert":
		err = app.revert()
	case "records":
		err = app.records()
	case "clear":
		err = app.clear()
	case "serve":
		err = app.serve(ctx)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runAllow manages the allow list: add a value, list rules or remove one
func runAllow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "Path to configuration file (YAML)")
	allowList := fs.String("allow-list", "", "Allow list file")
	typeName := fs.String("type", "", "Only allow the value for this type (default: any type)")
	reason := fs.String("reason", allowReason, "Why the value is allowed")
	expires := fs.Duration("expires", 0, "Drop the rule after this long (default: never)")
	list := fs.Bool("list", false, "List the rules")
	remove := fs.String("remove", "", "Remove the rule with this id")
	cleanup := fs.Bool("cleanup", false, "Remove expired rules")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := *allowList
	if path == "" {
		cfg := config.LoadConfigOrDefault(*configFile)
		path = cfg.Redaction.AllowList
	}
	sm, err := suppressions.NewSuppressionManager(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch {
	case *list:
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tREASON\tEXPIRES")
		for _, r := range sm.ListSuppressions() {
			expiry := "never"
			if r.ExpiresAt != nil {
				expiry = r.ExpiresAt.Format(time.RFC3339)
			}
			typ := r.Type
			if typ == "" {
				typ = "any"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, typ, r.Reason, expiry)
		}
		w.Flush()
		return 0
	case *remove != "":
		err = sm.RemoveSuppression(*remove)
		if err == nil {
			fmt.Fprintf(stdout, "Removed %s\n", *remove)
		}
	case *cleanup:
		var n int
		n, err = sm.CleanupExpired()
		if err == nil {
			fmt.Fprintf(stdout, "Removed %d expired rules\n", n)
		}
	default:
		value := strings.Join(fs.Args(), " ")
		if value == "" {
			fmt.Fprintln(stderr, "Usage: pii-redact allow [-type TYPE] [-reason TEXT] [-expires DURATION] VALUE")
			return 2
		}
		var typ redactors.PIIType
		if *typeName != "" {
			typ = redactors.NormalizeType(*typeName)
		}
		var expiresAt *time.Time
		if *expires > 0 {
			at := time.Now().Add(*expires).UTC()
			expiresAt = &at
		}
		var rule suppressions.SuppressionRule
		rule, err = sm.AddSuppression(typ, value, *reason, os.Getenv("USER"), expiresAt)
		if err == nil {
			fmt.Fprintf(stdout, "Added %s to %s\n", rule.ID, sm.GetConfigPath())
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func showHelp(args []string, stdout io.Writer) int {
	h := help.NewSystem(stdout, !isTerminal(stdout))
	switch {
	case len(args) == 0:
		h.ShowGeneralHelp()
	case args[0] == "types":
		h.ShowTypesHelp()
	default:
		if !h.ShowTypeHelp(args[0]) {
			fmt.Fprintf(stdout, "Unknown type %q. Run 'pii-redact help types' for the list.\n", args[0])
			return 1
		}
	}
	return 0
}

// app wires one command's dependencies
type app struct {
	command  string
	flags    *cliFlags
	cfg      *config.Config
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	observer *observability.StandardObserver
	detector detector.Detector
	store    *provenance.Store
	bolt     *provenance.BoltStore
	surface  surface.Surface
	session  *session.Session
}

func newApp(command string, flags *cliFlags, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := loadConfiguration(flags)
	if err != nil {
		return nil, err
	}

	if flags.noColor || cfg.Defaults.NoColor || !isTerminal(stdout) {
		color.NoColor = true
	}
	if _, ok := formatters.Get(flags.format); !ok {
		return nil, fmt.Errorf("unsupported format %q, available: %s", flags.format, strings.Join(formatters.List(), ", "))
	}

	a := &app{command: command, flags: flags, cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}
	a.observer = newObserver(cfg, flags.debug, stderr)

	if a.detector, err = newDetector(cfg, a.observer); err != nil {
		return nil, err
	}

	a.store = provenance.NewStore(nil, a.observer)
	if cfg.Session.Persist {
		if a.bolt, err = provenance.OpenBoltStore(cfg.Session.StoreFile); err != nil {
			return nil, err
		}
		if err := a.bolt.LoadStore(a.store); err != nil {
			a.close()
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	if a.surface, err = a.newSurface(); err != nil {
		a.close()
		return nil, err
	}

	allow, err := suppressions.NewSuppressionManager(cfg.Redaction.AllowList)
	if err != nil {
		a.close()
		return nil, err
	}

	a.session = session.New(a.detector, a.surface, a.store, session.Options{
		Algorithm:   cfg.Algorithm(),
		ScanTimeout: scanTimeout(cfg),
		Filter:      allow,
	}, a.observer)
	return a, nil
}

// loadConfiguration reads the config file and lets flags override it. An
// explicit -config must load; a discovered one falls back to defaults.
func loadConfiguration(flags *cliFlags) (*config.Config, error) {
	var cfg *config.Config
	if flags.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(flags.configFile); err != nil {
			return nil, err
		}
	} else {
		cfg = config.LoadConfigOrDefault("")
	}

	if flags.algorithm != "" {
		cfg.Redaction.Algorithm = flags.algorithm
	}
	if flags.mock != "" {
		cfg.Detector.Fixture = flags.mock
	}
	if flags.local {
		cfg.Detector.Local = true
	}
	if flags.sessionStore != "" {
		cfg.Session.StoreFile = flags.sessionStore
	}
	if flags.noPersist {
		cfg.Session.Persist = false
	}
	if flags.auditLog != "" {
		cfg.Redaction.AuditLog = flags.auditLog
	}
	if flags.allowList != "" {
		cfg.Redaction.AllowList = flags.allowList
	}
	if flags.listen != "" {
		cfg.Server.ListenAddr = flags.listen
	}
	if flags.debug {
		cfg.Defaults.Debug = true
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

func newObserver(cfg *config.Config, debug bool, stderr io.Writer) *observability.StandardObserver {
	if debug || cfg.Defaults.Debug {
		return observability.NewDebugObserver(stderr, stderr).StandardObserver
	}
	return observability.NewStandardObserver(observability.ParseLevel(cfg.Defaults.LogLevel), stderr)
}

func newDetector(cfg *config.Config, observer *observability.StandardObserver) (detector.Detector, error) {
	if cfg.Detector.Fixture != "" {
		return detector.LoadFixture(cfg.Detector.Fixture)
	}
	if cfg.Detector.Local {
		return validators.NewDetector(cfg.Detector.ConfidenceThreshold, observer), nil
	}
	return detector.NewHTTPDetector(cfg.DetectorConfig(), observer), nil
}

// scanTimeout bounds one scan including retries
func scanTimeout(cfg *config.Config) time.Duration {
	return cfg.Detector.Timeout * time.Duration(cfg.Detector.MaxRetries+2)
}

// newSurface picks where the command reads and writes text. serve always
// uses memory; the others use -file, or stdin when it is absent.
func (a *app) newSurface() (surface.Surface, error) {
	switch a.command {
	case "serve", "records", "clear", "revert":
		return surface.NewMemorySurface(""), nil
	}
	if a.flags.file != "" {
		return surface.NewFileSurface(a.flags.file, a.flags.output), nil
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return surface.NewMemorySurface(string(data)), nil
}

func (a *app) close() {
	if a.bolt != nil {
		if err := a.bolt.Close(); err != nil {
			fmt.Fprintf(a.stderr, "Warning: closing session store: %v\n", err)
		}
		a.bolt = nil
	}
}

// persist saves the store and the audit log after a mutating command
func (a *app) persist() error {
	if a.bolt != nil {
		if err := a.bolt.SaveStore(a.store); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if a.cfg.Redaction.AuditLog != "" {
		if err := a.session.AuditLog().Save(a.cfg.Redaction.AuditLog); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) formatOptions() formatters.FormatterOptions {
	return formatters.FormatterOptions{
		NoColor:       color.NoColor,
		Verbose:       a.flags.verbose,
		ShowOriginals: a.flags.showOriginals,
	}
}

// report prints a report. When rewritten text goes to stdout the report goes
// to stderr so the two never mix.
func (a *app) report(r formatters.Report, textOnStdout bool) error {
	r.SessionID = a.session.ID()
	out, err := formatters.Export(a.flags.format, r, a.formatOptions())
	if err != nil {
		return err
	}
	w := a.stdout
	if textOnStdout {
		w = a.stderr
	}
	_, err = fmt.Fprint(w, ensureNewline(out))
	return err
}

// emit writes rewritten text to stdout when the input was stdin
func (a *app) emit(text string) bool {
	if _, ok := a.surface.(*surface.FileSurface); ok {
		return false
	}
	fmt.Fprint(a.stdout, ensureNewline(text))
	return true
}

func (a *app) scan(ctx context.Context) error {
	batch, err := a.session.Scan(ctx)
	if err != nil {
		return err
	}
	return a.report(formatters.Report{
		Operation:   "scan",
		Annotations: a.session.Pending(),
		Batch:       &batch,
	}, false)
}

func (a *app) redact(ctx context.Context) error {
	scanned, err := a.session.Scan(ctx)
	if err != nil {
		return err
	}
	text, batch, err := a.session.AcceptAll()
	if err != nil {
		return err
	}
	// candidates the scan could not locate or was told to allow
	batch.Skipped = append(scanned.Skipped, batch.Skipped...)
	if err := a.persist(); err != nil {
		return err
	}
	onStdout := a.emit(text)
	return a.report(formatters.Report{Operation: "redact", Text: text, Batch: &batch}, onStdout)
}

func (a *app) fill() error {
	text, batch, err := a.session.Fill()
	if err != nil {
		return err
	}
	if err := a.persist(); err != nil {
		return err
	}
	onStdout := a.emit(text)
	return a.report(formatters.Report{Operation: "fill", Text: text, Batch: &batch}, onStdout)
}

// revert reads downstream text from -file or stdin and writes the restored
// text to -output or stdout
func (a *app) revert() error {
	var input string
	if a.flags.file != "" {
		var err error
		if input, err = surface.NewFileSurface(a.flags.file, a.flags.file).CurrentText(); err != nil {
			return err
		}
	} else {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = string(data)
	}

	text, batch := a.session.Revert(input)
	if err := a.persist(); err != nil {
		return err
	}

	if a.flags.output != "" {
		if err := surface.NewFileSurface(a.flags.output, "").SetCurrentText(text); err != nil {
			return err
		}
		return a.report(formatters.Report{Operation: "revert", Batch: &batch}, false)
	}
	fmt.Fprint(a.stdout, ensureNewline(text))
	return a.report(formatters.Report{Operation: "revert", Batch: &batch}, true)
}

func (a *app) records() error {
	return a.report(formatters.Report{Operation: "records", Records: a.store.Records()}, false)
}

func (a *app) clear() error {
	n := a.store.Len()
	a.session.Clear()
	if err := a.persist(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Session cleared (%d records removed)\n", n)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	ws := web.NewWebServer(web.ServerConfig{
		ListenAddr:    a.cfg.Server.ListenAddr,
		AllowedOrigin: a.cfg.Server.AllowedOrigin,
		Persist:       a.persist,
	}, a.session, a.surface, a.detector, a.observer)

	errCh := make(chan error, 1)
	go func() { errCh <- ws.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ws.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
