// Package report implements the Result emitter from spec §4.6: it owns the
// match directory's artifact files (.log, .mvtimes, .run, SGFs/, stderr/)
// and flushes every write before returning, so an abrupt termination always
// leaves a consistent prefix.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dumbarb/dumbarb/internal/engine"
	"github.com/dumbarb/dumbarb/internal/model"
)

// Emitter owns the three shared artifact streams plus the per-game SGF and
// per-(game,engine) stderr files for one match.
type Emitter struct {
	matchDir   string
	matchName  string
	disableSGF bool
	logStderr  bool

	mu            sync.Mutex
	logF, mvF, runF *os.File

	stderrMu    sync.Mutex
	stderrFiles map[string]*os.File
}

// New opens (creating if needed) the match directory and its three shared
// append-only streams.
func New(matchDir, matchName string, disableSGF, logStderr bool) (*Emitter, error) {
	if err := os.MkdirAll(matchDir, 0o755); err != nil {
		return nil, fmt.Errorf("report: mkdir match dir: %w", err)
	}
	if !disableSGF {
		if err := os.MkdirAll(filepath.Join(matchDir, "SGFs"), 0o755); err != nil {
			return nil, fmt.Errorf("report: mkdir SGFs: %w", err)
		}
	}
	if logStderr {
		if err := os.MkdirAll(filepath.Join(matchDir, "stderr"), 0o755); err != nil {
			return nil, fmt.Errorf("report: mkdir stderr: %w", err)
		}
	}

	open := func(ext string) (*os.File, error) {
		return os.OpenFile(filepath.Join(matchDir, matchName+ext), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	logF, err := open(".log")
	if err != nil {
		return nil, fmt.Errorf("report: open .log: %w", err)
	}
	mvF, err := open(".mvtimes")
	if err != nil {
		logF.Close()
		return nil, fmt.Errorf("report: open .mvtimes: %w", err)
	}
	runF, err := open(".run")
	if err != nil {
		logF.Close()
		mvF.Close()
		return nil, fmt.Errorf("report: open .run: %w", err)
	}

	return &Emitter{
		matchDir:    matchDir,
		matchName:   matchName,
		disableSGF:  disableSGF,
		logStderr:   logStderr,
		logF:        logF,
		mvF:         mvF,
		runF:        runF,
		stderrFiles: make(map[string]*os.File),
	}, nil
}

// Close flushes and closes every open stream.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stderrMu.Lock()
	for _, f := range e.stderrFiles {
		f.Close()
	}
	e.stderrFiles = map[string]*os.File{}
	e.stderrMu.Unlock()

	var firstErr error
	for _, f := range []*os.File{e.logF, e.mvF, e.runF} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Trace appends one timestamped line to the .run trace, per spec §4.6. Its
// signature matches gamedriver.Driver.RunTrace and match.Runner.RunTrace.
func (e *Emitter) Trace(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(e.runF, "%s %s\n", time.Now().Format("060102-15:04:05"), line)
	e.runF.Sync()
}

// EmitGame appends res's .log line and .mvtimes line, and writes its SGF
// file, flushing everything before returning (spec §4.6).
func (e *Emitter) EmitGame(res *model.GameResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := fmt.Fprintln(e.logF, LogLine(res)); err != nil {
		return fmt.Errorf("report: write .log: %w", err)
	}
	if err := e.logF.Sync(); err != nil {
		return fmt.Errorf("report: sync .log: %w", err)
	}

	if _, err := fmt.Fprintln(e.mvF, MoveTimesLine(res)); err != nil {
		return fmt.Errorf("report: write .mvtimes: %w", err)
	}
	if err := e.mvF.Sync(); err != nil {
		return fmt.Errorf("report: sync .mvtimes: %w", err)
	}

	if !e.disableSGF {
		name := fmt.Sprintf("%s-%d.sgf", e.matchName, res.Seq)
		path := filepath.Join(e.matchDir, "SGFs", name)
		if err := os.WriteFile(path, []byte(SGF(res)), 0o644); err != nil {
			return fmt.Errorf("report: write sgf: %w", err)
		}
	}
	return nil
}

// BeginGame rotates the per-(game,engine) stderr files ahead of game seq,
// closing any files left open from the previous game.
func (e *Emitter) BeginGame(seq int, engineNames ...string) error {
	if !e.logStderr {
		return nil
	}
	e.stderrMu.Lock()
	defer e.stderrMu.Unlock()
	for name, f := range e.stderrFiles {
		f.Close()
		delete(e.stderrFiles, name)
	}
	for _, name := range engineNames {
		fname := fmt.Sprintf("%s-%d-%s.err", e.matchName, seq, name)
		f, err := os.OpenFile(filepath.Join(e.matchDir, "stderr", fname), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("report: open stderr file for %s: %w", name, err)
		}
		e.stderrFiles[name] = f
	}
	return nil
}

// StderrSink returns the engine.StderrSink that routes engineName's stderr
// lines to whichever file BeginGame most recently opened for it.
func (e *Emitter) StderrSink(engineName string) engine.StderrSink {
	return func(line string) {
		e.stderrMu.Lock()
		f := e.stderrFiles[engineName]
		e.stderrMu.Unlock()
		if f != nil {
			fmt.Fprintln(f, line)
		}
	}
}
