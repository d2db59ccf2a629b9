package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/asubexec/internal/api"
	"github.com/mattjoyce/asubexec/internal/child"
	"github.com/mattjoyce/asubexec/internal/config"
	"github.com/mattjoyce/asubexec/internal/events"
	"github.com/mattjoyce/asubexec/internal/field"
	"github.com/mattjoyce/asubexec/internal/job"
	"github.com/mattjoyce/asubexec/internal/lock"
	"github.com/mattjoyce/asubexec/internal/log"
	"github.com/mattjoyce/asubexec/internal/runlog"
	"github.com/mattjoyce/asubexec/internal/sched"
	"github.com/mattjoyce/asubexec/internal/tui"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "job":
		return runJobNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`asubexec - Subroutine-style execution of external programs

Usage:
  asubexec <noun> <action> [flags]

Core Resources (Nouns):
  system    Daemon lifecycle
  config    Configuration and integrity
  job       Job triggering and inspection

System Commands:
  system start        Start the daemon in foreground

Config Commands:
  config lock         Authorize current state (update integrity hashes)
  config check        Validate syntax and integrity

Job Commands:
  job run <name>      Execute one job in-process and print its outcome
  job trigger <name>  Trigger a job on a running daemon (via API)
  job runs <name>     Show recent runs for a job (via API)
  job watch           Real-time monitoring TUI (via API)

General:
  --version           Show version information
  version             Show version information
  help                Show this help message

Use 'asubexec <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "help":
		printSystemNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runJobNoun(args []string) int {
	if len(args) < 1 {
		printJobNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJobNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "run":
		if hasHelpFlag(actionArgs) {
			printJobRunHelp()
			return 0
		}
		return runJobRun(actionArgs)
	case "trigger":
		if hasHelpFlag(actionArgs) {
			printJobTriggerHelp()
			return 0
		}
		return runJobTrigger(actionArgs)
	case "runs":
		if hasHelpFlag(actionArgs) {
			printJobRunsHelp()
			return 0
		}
		return runJobRuns(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printJobWatchHelp()
			return 0
		}
		return runJobWatch(actionArgs)
	case "help":
		printJobNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown job action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: asubexec system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: asubexec config <action> [flags]")
	fmt.Fprintln(w, "Actions: lock, check")
}

func printJobNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: asubexec job <action> [flags]")
	fmt.Fprintln(w, "Actions: run, trigger, runs, watch")
}

func printSystemStartHelp() {
	fmt.Println("Usage: asubexec system start [--config PATH]")
	fmt.Println("Start the daemon in the foreground.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: asubexec config lock [--config PATH] [--dry-run]")
	fmt.Println("Authorize the current configuration by regenerating integrity hashes.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: asubexec config check [--config PATH]")
	fmt.Println("Validate configuration syntax and integrity.")
}

func printJobRunHelp() {
	fmt.Println("Usage: asubexec job run <name> [--config PATH]")
	fmt.Println("Execute one configured job in-process and print its outcome as JSON.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Run completed with status ok or warning")
	fmt.Println("  1  Run failed or the job is not configured")
}

func printJobTriggerHelp() {
	fmt.Println("Usage: asubexec job trigger <name> [--api-url URL] [--api-key KEY]")
	fmt.Println("Trigger a job on a running daemon. The trigger is accepted or refused")
	fmt.Println("immediately; it does not wait for the run to finish.")
}

func printJobRunsHelp() {
	fmt.Println("Usage: asubexec job runs <name> [--api-url URL] [--api-key KEY] [--limit N]")
	fmt.Println("Show the most recent recorded runs for a job.")
}

func printJobWatchHelp() {
	fmt.Println("Usage: asubexec job watch [--api-url URL] [--api-key KEY]")
	fmt.Println()
	fmt.Println("Real-time monitoring TUI: job table, daemon health, and event stream.")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Navigate jobs")
}

// --- VERSION ---

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("asubexec %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version: strings.TrimSpace(version),
		Commit:  "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolved := strings.TrimSpace(gitCommit)
	if resolved == "" || resolved == "unknown" {
		resolved = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolved != "" {
		if len(resolved) > 12 {
			resolved = resolved[:12]
		}
		info.Commit = resolved
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- CONFIG RESOLUTION ---

// discoverConfigPath finds the configuration when --config is not given:
// $ASUBEXEC_CONFIG, then ./config.yaml, then a ./config directory.
func discoverConfigPath() (string, error) {
	if env := os.Getenv("ASUBEXEC_CONFIG"); env != "" {
		return env, nil
	}
	for _, candidate := range []string{"config.yaml", "config"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no configuration found (tried $ASUBEXEC_CONFIG, ./config.yaml, ./config)")
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return discoverConfigPath()
}

// configFileAndDir maps a config target (file or directory) to the concrete
// config file and the directory holding the .checksums manifest.
func configFileAndDir(configPath string) (file, dir string, err error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("config not found: %s", abs)
	}
	if info.IsDir() {
		return filepath.Join(abs, "config.yaml"), abs, nil
	}
	return abs, filepath.Dir(abs), nil
}

// --- CONFIG ACTIONS ---

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing .checksums")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	file, dir, err := configFileAndDir(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	report, err := config.GenerateChecksumsWithReport(dir, []string{filepath.Base(file)}, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate checksums: %v\n", err)
		return 1
	}

	for _, f := range report.Files {
		if !f.Exists {
			fmt.Printf("  skip  %s (not found)\n", f.Filename)
			continue
		}
		fmt.Printf("  hash  %s  %s\n", f.Filename, f.Hash)
	}
	if *dryRun {
		fmt.Println("Dry-run: no checksums written.")
		return 0
	}
	fmt.Printf("Wrote %s\n", report.ChecksumPath)
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	target, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	file, dir, err := configFileAndDir(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Integrity first, so a tampered file is reported as tampering and not
	// as a parse error.
	if manifest, err := config.LoadChecksums(dir); err == nil {
		if err := config.VerifyConfigFiles(dir, manifest, []string{filepath.Base(file)}); err != nil {
			fmt.Fprintf(os.Stderr, "Integrity: FAILED\n  %v\n", err)
			return 1
		}
		fmt.Println("Integrity: ✓ checksums match")
	} else {
		fmt.Println("Integrity: no .checksums manifest (run 'asubexec config lock' to create one)")
	}

	cfg, err := config.Load(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation: FAILED\n  %v\n", err)
		return 1
	}

	fmt.Printf("Validation: ✓ %d job(s) configured\n", len(cfg.Jobs))
	return 0
}

// --- DAEMON ---

// recorder is the trigger/resume sink: every completed run is persisted to
// the run log and announced on the event hub before the job is re-armed.
type recorder struct {
	runs   *runlog.Log
	hub    *events.Hub
	logger *slog.Logger
}

func (r *recorder) RunCompleted(j *job.Job, out job.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errText := ""
	if out.Err != nil {
		errText = out.Err.Error()
	}
	run := &runlog.Run{
		Job:        j.Name,
		Status:     string(out.Status),
		ExitCode:   out.ExitCode,
		Warnings:   len(out.Warnings),
		Stderr:     out.Stderr,
		Error:      errText,
		StartedAt:  out.Started,
		FinishedAt: out.Finished,
	}
	if err := r.runs.Record(ctx, run); err != nil {
		r.logger.Error("failed to record run", "job", j.Name, "error", err)
	}
	r.hub.JobCompleted(j.Name, string(out.Status), out.ExitCode, len(out.Warnings))
}

// directory wraps the manager so every accepted trigger, scheduled or
// manual, is announced on the hub. It serves both the API and the scheduler.
type directory struct {
	*job.Manager
	hub *events.Hub
}

func (d *directory) Trigger(name string) error {
	if err := d.Manager.Trigger(name); err != nil {
		return err
	}
	d.hub.JobTriggered(name)
	return nil
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	target, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("asubexec starting", "version", version, "config", target, "jobs", len(cfg.Jobs))

	pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)",
			"path", cfg.Service.PIDFile, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", cfg.Service.PIDFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs, err := runlog.Open(ctx, cfg.RunLog.Path)
	if err != nil {
		logger.Error("failed to open run log", "path", cfg.RunLog.Path, "error", err)
		return 1
	}
	defer runs.Close()
	logger.Info("run log opened", "path", cfg.RunLog.Path)

	hub := events.NewHub(256)

	manager := job.NewManager(log.WithComponent("job"), &recorder{
		runs:   runs,
		hub:    hub,
		logger: log.WithComponent("runlog"),
	})

	for name, jc := range cfg.Jobs {
		fields, err := field.Build(jc.Inputs, jc.Outputs)
		if err != nil {
			logger.Error("invalid field layout", "job", name, "error", err)
			return 1
		}
		spec := child.Spec{
			Path:    jc.Exec,
			Args:    jc.Args,
			Dir:     jc.Dir,
			Timeout: jc.Timeout,
		}
		if err := manager.Add(name, spec, fields); err != nil {
			logger.Error("failed to register job", "job", name, "error", err)
			return 1
		}
		logger.Info("job registered", "job", name, "exec", jc.Exec, "timeout", jc.Timeout)
	}

	manager.Start(ctx)
	dir := &directory{Manager: manager, hub: hub}

	scheduler := sched.New(cfg.Service.TickInterval, dir, hub, log.Get())
	scheduled := 0
	for name, jc := range cfg.Jobs {
		if jc.Schedule == nil {
			continue
		}
		every, err := config.ParseInterval(jc.Schedule.Every)
		if err != nil {
			logger.Error("invalid schedule", "job", name, "error", err)
			return 1
		}
		scheduler.Add(name, every, jc.Schedule.Jitter)
		scheduled++
	}
	if scheduled > 0 {
		scheduler.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, dir, runs, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	hub.Publish(events.TypeDaemonReady, map[string]any{"jobs": len(cfg.Jobs)})
	logger.Info("asubexec running (press Ctrl+C to stop)")

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exitCode = 1
	}

	cancel()
	if scheduled > 0 {
		scheduler.Stop()
	}
	manager.Wait()

	logger.Info("asubexec stopped")
	return exitCode
}

// --- JOB ACTIONS ---

// oneShotSink hands the outcome back to the caller of `job run`.
type oneShotSink struct {
	ch chan job.Outcome
}

func (s *oneShotSink) RunCompleted(_ *job.Job, out job.Outcome) {
	s.ch <- out
}

type runReport struct {
	Job      string `json:"job"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Warnings int    `json:"warnings"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

func runJobRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: asubexec job run <name> [--config PATH]")
		return 1
	}
	name := fs.Arg(0)

	target, err := resolveConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	jc, ok := cfg.Jobs[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown job: %s\n", name)
		return 1
	}
	fields, err := field.Build(jc.Inputs, jc.Outputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid field layout for %s: %v\n", name, err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)

	sink := &oneShotSink{ch: make(chan job.Outcome, 1)}
	manager := job.NewManager(log.WithComponent("job"), sink)
	if err := manager.Add(name, child.Spec{
		Path:    jc.Exec,
		Args:    jc.Args,
		Dir:     jc.Dir,
		Timeout: jc.Timeout,
	}, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register job: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	if err := manager.Trigger(name); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Trigger failed: %v\n", err)
		return 1
	}

	out := <-sink.ch
	cancel()
	manager.Wait()

	report := runReport{
		Job:      name,
		Status:   string(out.Status),
		ExitCode: out.ExitCode,
		Warnings: len(out.Warnings),
		Stderr:   out.Stderr,
		Duration: out.Finished.Sub(out.Started).Round(time.Millisecond).String(),
	}
	if out.Err != nil {
		report.Error = out.Err.Error()
	}
	data, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(data))

	if out.Status == job.StatusOK || out.Status == job.StatusWarning {
		return 0
	}
	return 1
}

func runJobTrigger(args []string) int {
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Daemon API URL")
	apiKey := fs.String("api-key", os.Getenv("ASUBEXEC_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: asubexec job trigger <name> [--api-url URL] [--api-key KEY]")
		return 1
	}
	name := fs.Arg(0)

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/v1/jobs/"+name+"/trigger", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Printf("Triggered %s\n", name)
		return 0
	case http.StatusConflict:
		fmt.Fprintf(os.Stderr, "Refused: %s is busy\n", name)
		return 1
	case http.StatusNotFound:
		fmt.Fprintf(os.Stderr, "Unknown job: %s\n", name)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "Trigger failed (%d): %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return 1
	}
}

func runJobRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Daemon API URL")
	apiKey := fs.String("api-key", os.Getenv("ASUBEXEC_API_KEY"), "API Bearer Token")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: asubexec job runs <name> [--api-url URL] [--api-key KEY] [--limit N]")
		return 1
	}
	name := fs.Arg(0)

	url := fmt.Sprintf("%s/v1/jobs/%s/runs?limit=%d", *apiURL, name, *limit)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Request failed (%d): %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return 1
	}

	var pretty []json.RawMessage
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return 0
	}
	data, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(data))
	return 0
}

func runJobWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Daemon API URL")
	apiKey := fs.String("api-key", os.Getenv("ASUBEXEC_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := tui.NewMonitor(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
