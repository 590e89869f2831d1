// Package executor runs external commands (toolchain installers, build
// tools) with output capture, environment control, and context support for
// cancellation and timeouts.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Result holds the output and exit status of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an argv-style command. The first element is the program.
type Runner interface {
	Run(ctx context.Context, argv []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior.
type Options struct {
	// WorkingDir is the directory the command runs in.
	WorkingDir string

	// Env is appended to the current process environment.
	Env map[string]string

	// StdoutWriter and StderrWriter receive a live copy of the output in
	// addition to the captured buffers.
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option mutates Options.
type Option func(*Options)

// WithDir sets the working directory.
func WithDir(dir string) Option {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithEnv appends environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) { o.Env = env }
}

// WithStdout tees stdout to w.
func WithStdout(w io.Writer) Option {
	return func(o *Options) { o.StdoutWriter = w }
}

// WithStderr tees stderr to w.
func WithStderr(w io.Writer) Option {
	return func(o *Options) { o.StderrWriter = w }
}

// CommandRunner implements Runner on top of os/exec.
type CommandRunner struct{}

// New creates a CommandRunner.
func New() *CommandRunner {
	return &CommandRunner{}
}

// Run executes argv and captures its output. A non-zero exit is returned as
// an error alongside the Result; the Result is always populated so callers
// can surface diagnostics verbatim.
func (r *CommandRunner) Run(ctx context.Context, argv []string, opts ...Option) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if options.StdoutWriter != nil {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, options.StdoutWriter)
	}
	if options.StderrWriter != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, options.StderrWriter)
	}

	err := cmd.Run()

	result := &Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	if err != nil {
		// Cancellation takes precedence over the process error so callers
		// see a clean abort rather than a spurious command failure.
		if ctx.Err() != nil {
			return result, fmt.Errorf("command %s interrupted: %w", argv[0], ctx.Err())
		}
		return result, fmt.Errorf("command %s failed: %w", argv[0], err)
	}
	return result, nil
}
