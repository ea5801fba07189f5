package guest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

type call struct {
	name string
	args []string
}

// scriptRunner returns canned results and records invocations.
type scriptRunner struct {
	res   Result
	err   error
	calls []call
}

func (r *scriptRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	r.calls = append(r.calls, call{name: name, args: args})
	return r.res, r.err
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func qmConfig() Config {
	return Config{ID: "100", Command: []string{"qm"}, StatusVerb: "status", StartVerb: "start", RunningMarker: "running"}
}

func TestRunningTruthTable(t *testing.T) {
	cases := []struct {
		name string
		res  Result
		err  error
		want bool
	}{
		{"running exit 0", Result{Stdout: []byte("status: running\n")}, nil, true},
		{"stopped exit 0", Result{Stdout: []byte("status: stopped\n")}, nil, false},
		{"running non-zero", Result{ExitCode: 2, Stdout: []byte("status: running\n")}, nil, false},
		{"empty output", Result{}, nil, false},
		{"case sensitive", Result{Stdout: []byte("status: RUNNING")}, nil, false},
		{"spawn failure", Result{}, errors.New("exec: \"qm\": executable file not found"), false},
		{"marker in stderr only", Result{Stderr: []byte("running")}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &scriptRunner{res: tc.res, err: tc.err}
			c := NewController(qmConfig(), r, quietLog())
			if got := c.Running(context.Background()); got != tc.want {
				t.Fatalf("Running() = %v, want %v", got, tc.want)
			}
			if len(r.calls) != 1 {
				t.Fatalf("expected one invocation, got %d", len(r.calls))
			}
			if r.calls[0].name != "qm" || !reflect.DeepEqual(r.calls[0].args, []string{"status", "100"}) {
				t.Fatalf("unexpected invocation %+v", r.calls[0])
			}
		})
	}
}

func TestStart(t *testing.T) {
	r := &scriptRunner{res: Result{Stdout: []byte("ok")}}
	c := NewController(qmConfig(), r, quietLog())
	if !c.Start(context.Background()) {
		t.Fatalf("exit 0 should succeed")
	}
	if !reflect.DeepEqual(r.calls[0].args, []string{"start", "100"}) {
		t.Fatalf("unexpected args %v", r.calls[0].args)
	}

	r = &scriptRunner{res: Result{ExitCode: 255, Stderr: []byte("VM is locked")}}
	c = NewController(qmConfig(), r, quietLog())
	if c.Start(context.Background()) {
		t.Fatalf("non-zero exit should fail")
	}

	r = &scriptRunner{err: errors.New("spawn")}
	c = NewController(qmConfig(), r, quietLog())
	if c.Start(context.Background()) {
		t.Fatalf("spawn error should fail")
	}
}

func TestCommandPrefix(t *testing.T) {
	cfg := qmConfig()
	cfg.Command = []string{"ssh", "root@pve", "qm"}
	r := &scriptRunner{}
	c := NewController(cfg, r, quietLog())
	c.Running(context.Background())
	want := []string{"root@pve", "qm", "status", "100"}
	if r.calls[0].name != "ssh" || !reflect.DeepEqual(r.calls[0].args, want) {
		t.Fatalf("unexpected invocation %+v", r.calls[0])
	}
	if d := c.Describe(); d != "ssh root@pve qm status 100" {
		t.Fatalf("Describe() = %q", d)
	}
	// argv must not alias the configured prefix
	c.Start(context.Background())
	if !reflect.DeepEqual(cfg.Command, []string{"ssh", "root@pve", "qm"}) {
		t.Fatalf("command prefix mutated: %v", cfg.Command)
	}
}

func TestExecRunner(t *testing.T) {
	requireUnix(t)
	ctx := context.Background()

	res, err := ExecRunner{}.Run(ctx, "/bin/sh", "-c", "echo status: running; echo warn >&2")
	if err != nil || res.ExitCode != 0 {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	if string(res.Stdout) != "status: running\n" || string(res.Stderr) != "warn\n" {
		t.Fatalf("unexpected output %q / %q", res.Stdout, res.Stderr)
	}

	res, err = ExecRunner{}.Run(ctx, "/bin/sh", "-c", "exit 3")
	if err != nil || res.ExitCode != 3 {
		t.Fatalf("exit 3 expected as result, got %+v err=%v", res, err)
	}

	if _, err = (ExecRunner{}).Run(ctx, "__definitely_not_exists__"); err == nil {
		t.Fatalf("expected error for missing binary")
	}

	start := time.Now()
	_, err = ExecRunner{Timeout: 50 * time.Millisecond}.Run(ctx, "/bin/sh", "-c", "exec sleep 5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestExecRunnerEnv(t *testing.T) {
	requireUnix(t)
	r := ExecRunner{Env: []string{"PATH=/usr/bin:/bin", "PVE_NODE=pve1"}}
	res, err := r.Run(context.Background(), "/bin/sh", "-c", `echo "$PVE_NODE"`)
	if err != nil || string(res.Stdout) != "pve1\n" {
		t.Fatalf("env not passed: %+v err=%v", res, err)
	}
}

func TestControllerWithShellScripts(t *testing.T) {
	requireUnix(t)
	cfg := Config{
		ID:            "100",
		Command:       []string{"/bin/sh", "-c", `case "$0" in status) echo "status: running";; start) exit 1;; esac`},
		StatusVerb:    "status",
		StartVerb:     "start",
		RunningMarker: "running",
	}
	c := NewController(cfg, ExecRunner{}, quietLog())
	if !c.Running(context.Background()) {
		t.Fatalf("expected running")
	}
	if c.Start(context.Background()) {
		t.Fatalf("expected start failure")
	}
}
