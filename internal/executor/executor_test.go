package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fixpipe/fixpipe/internal/models"
	"github.com/fixpipe/fixpipe/internal/testutil"
)

func TestRunMissingScript(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope.sh"), nil)
	if !errors.Is(err, models.ErrScriptNotFound) {
		t.Errorf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestRunCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "ok.sh", `echo "wifi restarted"`)

	r := NewRunner()
	out, err := r.Run(context.Background(), script, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out != "wifi restarted" {
		t.Errorf("expected trimmed stdout, got %q", out)
	}
}

func TestRunEmptyStdoutSuccessMessage(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "quiet.sh", "exit 0")

	r := NewRunner()
	out, err := r.Run(context.Background(), script, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out != successMessage {
		t.Errorf("expected default success message, got %q", out)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "fail.sh", `echo "disk check failed" >&2
exit 3`)

	r := NewRunner()
	_, err := r.Run(context.Background(), script, nil)

	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected *ScriptError, got %v", err)
	}
	if scriptErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", scriptErr.ExitCode)
	}
	if !strings.Contains(scriptErr.Stderr, "disk check failed") {
		t.Errorf("expected stderr captured, got %q", scriptErr.Stderr)
	}
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "slow.sh", "sleep 10")

	r := NewRunner(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	_, err := r.Run(context.Background(), script, nil)
	elapsed := time.Since(start)

	if !errors.Is(err, models.ErrScriptTimeout) {
		t.Fatalf("expected ErrScriptTimeout, got %v", err)
	}
	if elapsed > 8*time.Second {
		t.Errorf("timed-out run took too long to return: %v", elapsed)
	}
}

func TestRunCallerCancellation(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "slow.sh", "sleep 10")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	r := NewRunner(WithTimeout(30 * time.Second))
	_, err := r.Run(ctx, script, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled for caller cancellation, got %v", err)
	}
	if errors.Is(err, models.ErrScriptTimeout) {
		t.Error("caller cancellation must not be reported as a timeout")
	}
}

func TestRunPassesParamsAsArgsAndEnv(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "params.sh", `echo "args: $@"
echo "env: $FIXPIPE_PARAM_OS"`)

	r := NewRunner()
	out, err := r.Run(context.Background(), script, map[string]string{"os": "linux", "error": "timeout"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// Keys are sorted, so --error precedes --os.
	if !strings.Contains(out, "--error=timeout --os=linux") {
		t.Errorf("expected sorted --key=value args, got %q", out)
	}
	if !strings.Contains(out, "env: linux") {
		t.Errorf("expected FIXPIPE_PARAM_OS in environment, got %q", out)
	}
}

func TestRunParamValueNotShellInterpreted(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "pwned")
	script := testutil.WriteScript(t, dir, "echoarg.sh", `echo "$1"`)

	r := NewRunner()
	out, err := r.Run(context.Background(), script, map[string]string{
		"cmd": "; touch " + marker,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out, "; touch") {
		t.Errorf("injection payload should arrive as a literal argument, got %q", out)
	}
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Error("shell metacharacters in a param value must not execute")
	}
}

func TestConcurrencyCap(t *testing.T) {
	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "napping.sh", "sleep 0.2")

	r := NewRunner(WithMaxConcurrent(1), WithTimeout(5*time.Second))

	start := time.Now()
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := r.Run(context.Background(), script, nil)
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 350*time.Millisecond {
		t.Errorf("two runs with cap 1 should serialize, finished in %v", elapsed)
	}
}

func TestSanitizeEnvKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"os", "OS"},
		{"error-code", "ERROR_CODE"},
		{"step 2", "STEP_2"},
		{"weird!key", "WEIRD_KEY"},
	}
	for _, tt := range tests {
		if got := sanitizeEnvKey(tt.in); got != tt.want {
			t.Errorf("sanitizeEnvKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandPythonScript(t *testing.T) {
	r := NewRunner(WithPythonInterpreter("python3"))
	name, args := r.command("/opt/fix.py", map[string]string{"os": "mac"})
	if name != "python3" {
		t.Errorf("expected python interpreter, got %q", name)
	}
	if len(args) != 2 || args[0] != "/opt/fix.py" || args[1] != "--os=mac" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestCommandDirectScript(t *testing.T) {
	r := NewRunner()
	name, args := r.command("/opt/fix.sh", nil)
	if name != "/opt/fix.sh" {
		t.Errorf("expected direct execution, got %q", name)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}
