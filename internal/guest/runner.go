package guest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner invokes control plane commands. A non-zero exit is reported through
// Result.ExitCode; err is reserved for commands that could not be run or did
// not finish (spawn failure, timeout, cancellation).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

const waitDelay = time.Second

// ExecRunner runs commands as child processes. A zero Timeout means the
// command may run for as long as ctx allows. A nil Env inherits the
// process environment.
type ExecRunner struct {
	Timeout time.Duration
	Env     []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// grandchildren may keep the output pipes open after a kill
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	return res, err
}
