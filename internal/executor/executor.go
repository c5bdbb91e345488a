// Package executor runs external remediation scripts for FixPipe.
//
// Scripts are spawned directly with an argument vector — never through a
// shell — so user-supplied parameter values cannot be interpreted as shell
// syntax. Each run is bounded by a hard wall-clock timeout and the total
// number of concurrently running scripts is capped by a weighted semaphore.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fixpipe/fixpipe/internal/models"
)

// Default configuration constants
const (
	// DefaultTimeout is the hard wall-clock limit for a single script run.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxConcurrent caps the number of scripts running at once.
	DefaultMaxConcurrent = 4
	// killGracePeriod is how long a timed-out process gets between cancel
	// and forced kill.
	killGracePeriod = 5 * time.Second
	// paramEnvPrefix prefixes collected answer keys in the child environment.
	paramEnvPrefix = "FIXPIPE_PARAM_"
	// successMessage replaces empty stdout on a successful run.
	successMessage = "Script executed successfully"
)

// ScriptError reports a script that ran but exited non-zero.
type ScriptError struct {
	ExitCode int
	Stderr   string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script failed (code %d): %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Opts holds configuration options for the script runner.
type Opts struct {
	Timeout       time.Duration
	MaxConcurrent int64
	Python        string // interpreter used for .py scripts
}

// Option defines a configuration option for the script runner.
type Option func(*Opts)

// WithTimeout sets the wall-clock limit for a single script run.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithMaxConcurrent sets the cap on concurrently running scripts.
func WithMaxConcurrent(n int64) Option {
	return func(o *Opts) {
		o.MaxConcurrent = n
	}
}

// WithPythonInterpreter sets the interpreter used for .py scripts.
func WithPythonInterpreter(path string) Option {
	return func(o *Opts) {
		o.Python = path
	}
}

// Runner executes remediation scripts with timeout and concurrency bounds.
// It is safe for concurrent use.
type Runner struct {
	timeout time.Duration
	python  string
	sem     *semaphore.Weighted
}

// NewRunner creates a script runner, applying any provided options.
func NewRunner(opts ...Option) *Runner {
	cfg := Opts{Timeout: DefaultTimeout, MaxConcurrent: DefaultMaxConcurrent, Python: "python3"}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("executor.NewRunner created", "timeout", cfg.Timeout, "max_concurrent", cfg.MaxConcurrent)
	return &Runner{
		timeout: cfg.Timeout,
		python:  cfg.Python,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Run executes the script at scriptPath with params passed both as
// --key=value arguments (sorted by key) and as FIXPIPE_PARAM_<KEY>
// environment entries. It returns trimmed stdout on success, or one of
// models.ErrScriptNotFound, models.ErrScriptTimeout, *ScriptError, or the
// caller's context error.
func (r *Runner) Run(ctx context.Context, scriptPath string, params map[string]string) (string, error) {
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		slog.Error("Runner.Run: failed to resolve script path", "error", err, "script", scriptPath)
		return "", fmt.Errorf("failed to resolve script path %s: %w", scriptPath, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		slog.Warn("Runner.Run: script not found", "script", absPath)
		return "", fmt.Errorf("%w: %s", models.ErrScriptNotFound, absPath)
	}

	// Bound concurrent child processes; respects caller cancellation while waiting.
	if err := r.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("Runner.Run: canceled while waiting for execution slot", "script", absPath)
		return "", err
	}
	defer r.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, args := r.command(absPath, params)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Env = append(os.Environ(), paramEnv(params)...)
	cmd.WaitDelay = killGracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Runner.Run: spawning script", "script", absPath, "params", len(params))
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		slog.Error("Runner.Run: script timed out", "script", absPath, "timeout", r.timeout)
		return "", fmt.Errorf("%w after %s: %s", models.ErrScriptTimeout, r.timeout, absPath)
	}
	if ctx.Err() != nil {
		slog.Warn("Runner.Run: script canceled by caller", "script", absPath)
		return "", ctx.Err()
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			slog.Error("Runner.Run: script exited non-zero", "script", absPath, "code", exitErr.ExitCode())
			return "", &ScriptError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		slog.Error("Runner.Run: script failed to start", "error", runErr, "script", absPath)
		return "", fmt.Errorf("failed to run script %s: %w", absPath, runErr)
	}

	slog.Debug("Runner.Run: script succeeded", "script", absPath, "elapsed", elapsed)
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return successMessage, nil
	}
	return output, nil
}

// command builds the argument vector for the script. Python scripts go
// through the configured interpreter; anything else is executed directly.
func (r *Runner) command(absPath string, params map[string]string) (string, []string) {
	var name string
	var args []string
	if strings.EqualFold(filepath.Ext(absPath), ".py") {
		name = r.python
		args = append(args, absPath)
	} else {
		name = absPath
	}
	for _, k := range sortedKeys(params) {
		args = append(args, fmt.Sprintf("--%s=%s", k, params[k]))
	}
	return name, args
}

// paramEnv renders params as environment entries with sanitized upper-case keys.
func paramEnv(params map[string]string) []string {
	env := make([]string, 0, len(params))
	for _, k := range sortedKeys(params) {
		env = append(env, fmt.Sprintf("%s%s=%s", paramEnvPrefix, sanitizeEnvKey(k), params[k]))
	}
	return env
}

// sanitizeEnvKey upper-cases the key and replaces non-alphanumerics with underscores.
func sanitizeEnvKey(key string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(key) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
