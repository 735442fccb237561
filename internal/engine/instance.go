// Package engine implements the per-engine supervisor from spec §4.2: it
// owns one EngineInstance's subprocess lifecycle, drives its GTP handshake,
// forwards commands through the transport with the right per-command
// timeout, and restarts the child on poisoning.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/dumbarb/dumbarb/internal/gtp"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/slogx"
)

// StderrSink receives one stderr line at a time, per spec §4.1.
type StderrSink func(line string)

// Supervisor wraps one EngineInstance: spawn, handshake, command forwarding,
// restart, quit. Only one command is ever in flight (the Game driver is the
// sole caller, per spec §5), so Supervisor does not serialize internally.
type Supervisor struct {
	spec   model.EngineSpec
	params model.TemplateParams
	log    *slog.Logger

	stderrSink StderrSink

	mu            sync.Mutex
	cmd           *exec.Cmd
	transport     *gtp.Transport
	stderrDone    <-chan struct{}
	restartCount  int
	reportedName  string
	reportedVer   string
	supported     map[string]bool
	startedOnce   bool
}

// New creates a Supervisor; it does not start the process yet.
func New(spec model.EngineSpec, params model.TemplateParams, log *slog.Logger, sink StderrSink) *Supervisor {
	if log == nil {
		log = slogx.DiscardLogger()
	}
	if sink == nil {
		sink = func(string) {}
	}
	return &Supervisor{spec: spec, params: params, log: log, stderrSink: sink}
}

func (s *Supervisor) Name() string         { return s.spec.Name }
func (s *Supervisor) RestartCount() int    { return s.restartCount }
func (s *Supervisor) ReportedName() string { return s.reportedName }
func (s *Supervisor) ReportedVersion() string { return s.reportedVer }

func (s *Supervisor) Supports(cmd string) bool {
	return s.supported[cmd]
}

// Start spawns the child, wires pipes, begins stderr draining, and runs the
// list_commands/name/version handshake plus PreMatch (first start only),
// per spec §4.2. PreGame commands are not sent here: the Game driver sends
// them via PreGameCommands during each game's setup.
func (s *Supervisor) Start(ctx context.Context, preMatch bool) error {
	args := model.ExpandCmdLine(s.spec.CmdLine, s.params)
	if len(args) == 0 {
		return fmt.Errorf("engine %q: empty command line", s.spec.Name)
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = s.spec.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine %q: stdin pipe: %w", s.spec.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine %q: stdout pipe: %w", s.spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine %q: stderr pipe: %w", s.spec.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("engine %q: start: %w", s.spec.Name, err)
	}

	s.cmd = cmd
	s.transport = gtp.New(stdin, stdout)
	s.stderrDone = gtp.StartStderrDrain(stderr, s.onStderrLine)

	initTimeout := s.spec.GTPInitialTimeout
	if initTimeout == 0 {
		initTimeout = 15 * time.Second
	}
	deadline := time.Now().Add(initTimeout)

	if err := s.handshake(ctx, deadline); err != nil {
		_ = s.killLocked()
		return fmt.Errorf("engine %q: handshake: %w", s.spec.Name, err)
	}

	if preMatch && !s.startedOnce {
		for _, c := range s.spec.PreMatch {
			if err := s.runCustom(ctx, c); err != nil {
				s.log.Warn("pre-match command failed", slog.String("engine", s.spec.Name), slogx.Err(err))
			}
		}
	}
	s.startedOnce = true

	return nil
}

// PreGameCommands and PostGameCommands return the engine's custom per-game
// commands with placeholders expanded, for the Game driver to send as steps
// 2 and 5 of spec §4.4.
func (s *Supervisor) PreGameCommands() []string  { return model.ExpandCmdLine(s.spec.PreGame, s.params) }
func (s *Supervisor) PostGameCommands() []string { return model.ExpandCmdLine(s.spec.PostGame, s.params) }

func (s *Supervisor) onStderrLine(line string) {
	if s.spec.LogStdErr {
		s.stderrSink(line)
	}
	if !s.spec.Quiet {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", s.spec.Name, line)
	}
}

func (s *Supervisor) handshake(ctx context.Context, deadline time.Time) error {
	resp, err := s.transport.Send(ctx, "list_commands", deadline)
	if err != nil {
		return fmt.Errorf("list_commands: %w", err)
	}
	s.supported = make(map[string]bool)
	for _, f := range resp.Fields() {
		s.supported[f] = true
	}

	if resp2, err := s.transport.Send(ctx, "name", deadline); err == nil {
		s.reportedName = resp2.Body
	}
	if resp3, err := s.transport.Send(ctx, "version", deadline); err == nil {
		s.reportedVer = resp3.Body
	}
	return nil
}

func (s *Supervisor) runCustom(ctx context.Context, cmdline string) error {
	expanded := model.ExpandTemplate(cmdline, s.params)
	_, err := s.Command(ctx, expanded, s.defaultTimeout())
	return err
}

func (s *Supervisor) defaultTimeout() time.Duration { return 10 * time.Second }

// Command forwards cmd to the transport with the given timeout, per spec
// §4.2.
func (s *Supervisor) Command(ctx context.Context, cmd string, timeout time.Duration) (gtp.Response, error) {
	if s.transport == nil {
		return gtp.Response{}, fmt.Errorf("engine %q: not started", s.spec.Name)
	}
	return s.transport.Send(ctx, cmd, time.Now().Add(timeout))
}

// Cancel aborts any in-flight command, the cancellable-read primitive spec §5
// requires of every blocking I/O suspension point.
func (s *Supervisor) Cancel() {
	if s.transport != nil {
		s.transport.Cancel()
	}
}

// Restart kills the child (terminate, then force-kill after a grace period),
// increments the restart counter, and re-runs Start.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	_ = s.killLocked()
	s.mu.Unlock()
	s.restartCount++
	if err := s.Start(ctx, false); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}

// Quit sends "quit" best-effort and ensures the process is reaped.
func (s *Supervisor) Quit(ctx context.Context) {
	if s.transport != nil {
		_, _ = s.transport.Send(ctx, "quit", time.Now().Add(s.defaultTimeout()))
	}
	s.mu.Lock()
	_ = s.killLocked()
	s.mu.Unlock()
}

func (s *Supervisor) killLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if s.transport != nil {
		s.transport.Cancel()
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	_ = s.cmd.Process.Signal(terminateSignal())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
	if s.stderrDone != nil {
		<-s.stderrDone
	}
	s.cmd = nil
	s.transport = nil
	return nil
}
