package executor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New()

	result, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Errorf("stdout = %q, want %q", result.Stdout, "out\n")
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Errorf("stderr = %q, want %q", result.Stderr, "err\n")
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := New()

	result, err := r.Run(context.Background(), []string{"sh", "-c", "echo diag >&2; exit 3"})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result == nil {
		t.Fatal("expected result alongside error")
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if strings.TrimSpace(result.Stderr) != "diag" {
		t.Errorf("stderr = %q, want diagnostics preserved", result.Stderr)
	}
}

func TestRunWorkingDirAndEnv(t *testing.T) {
	r := New()
	dir := t.TempDir()

	result, err := r.Run(context.Background(),
		[]string{"sh", "-c", "pwd; printf %s \"$CROSSDEPLOY_TEST\""},
		WithDir(dir),
		WithEnv(map[string]string{"CROSSDEPLOY_TEST": "value"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, dir) {
		t.Errorf("expected working dir %q in output %q", dir, result.Stdout)
	}
	if !strings.HasSuffix(result.Stdout, "value") {
		t.Errorf("expected env var in output %q", result.Stdout)
	}
}

func TestRunTeesOutput(t *testing.T) {
	r := New()
	var out, errOut bytes.Buffer

	result, err := r.Run(context.Background(),
		[]string{"sh", "-c", "echo out; echo err >&2"},
		WithStdout(&out),
		WithStderr(&errOut),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The tee writers receive the same bytes the Result captures.
	if out.String() != result.Stdout {
		t.Errorf("teed stdout = %q, captured %q", out.String(), result.Stdout)
	}
	if errOut.String() != result.Stderr {
		t.Errorf("teed stderr = %q, captured %q", errOut.String(), result.Stderr)
	}
	if strings.TrimSpace(out.String()) != "out" || strings.TrimSpace(errOut.String()) != "err" {
		t.Errorf("tee content = (%q, %q)", out.String(), errOut.String())
	}
}

func TestRunCancellation(t *testing.T) {
	r := New()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, []string{"sleep", "10"})
	if err == nil {
		t.Fatal("expected error for cancelled command")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("expected interruption error, got %v", err)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := New()
	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}
