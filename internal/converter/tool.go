package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/limiter"
)

// Tool is a command-line PDF collaborator that reads inputPath and writes
// outputPath.
type Tool interface {
	Name() string
	Run(ctx context.Context, inputPath, outputPath string) error
	// Available reports whether the binary can be invoked at all.
	Available() error
}

// Runner hands documents to tools through temp files. It owns both temp
// paths, bounds concurrent processes with slots and applies the timeout.
type Runner struct {
	Slots   *limiter.Slots
	WorkDir string
	Timeout time.Duration
}

// Convert runs tool over input and returns the bytes it produced.
func (r *Runner) Convert(ctx context.Context, tool Tool, input []byte) ([]byte, error) {
	start := time.Now()
	if err := tool.Available(); err != nil {
		return nil, err
	}

	if r.Slots != nil {
		release, err := r.Slots.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	ws, err := NewWorkspace(r.WorkDir, tool.Name())
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	in, out := ws.Path("input.pdf"), ws.Path("output.pdf")
	if err := os.WriteFile(in, input, 0o600); err != nil {
		return nil, fmt.Errorf("write tool input: %w", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runErr := tool.Run(tctx, in, out)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if tctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timeout after %v", tool.Name(), timeout)
	}
	if runErr != nil {
		return nil, runErr
	}

	b, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%s produced no output: %w", tool.Name(), err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%s produced an empty file", tool.Name())
	}
	log.Debug().Str("tool", tool.Name()).Int("bytes", len(b)).Dur("duration", time.Since(start)).Msg("tool conversion finished")
	return b, nil
}

// binary resolves a tool executable, mapping "not installed" to
// ToolUnavailableError.
func binary(tool, path string) (string, error) {
	p, err := exec.LookPath(path)
	if err != nil {
		return "", &document.ToolUnavailableError{Tool: tool, Err: err}
	}
	return p, nil
}

// run executes a command in its own process group so a timeout kills any
// children it spawned.
func run(ctx context.Context, tool, bin string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	configureProcess(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("tool command")
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return exitErr.ExitCode(), fmt.Errorf("%s exited with %d: %s", tool, exitErr.ExitCode(), msg)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return -1, &document.ToolUnavailableError{Tool: tool, Err: err}
	}
	return -1, fmt.Errorf("%s failed: %w", tool, err)
}
