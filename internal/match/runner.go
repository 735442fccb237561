// Package match implements the Match runner from spec §4.5: it owns both
// (optionally three) engine.Supervisors for the duration of a match, plays
// NumGames games in sequence through the Game driver, alternates colour,
// and restarts any engine the Game driver reports as poisoned before the
// next game begins.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dumbarb/dumbarb/internal/clockctl"
	"github.com/dumbarb/dumbarb/internal/engine"
	"github.com/dumbarb/dumbarb/internal/gamedriver"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/backoff"
	"github.com/dumbarb/dumbarb/internal/util/slogx"
)

// ResultSink receives one GameResult as soon as each game finishes, so the
// Result emitter can persist it durably before the next game starts, per
// spec §4.6.
type ResultSink func(*model.GameResult)

// Runner drives one match end to end: spawn both engines, play every game,
// quit both engines.
type Runner struct {
	Plan model.MatchPlan
	Log  *slog.Logger

	OnResult ResultSink
	RunTrace func(format string, args ...any)
	// OnMove, if set, is forwarded to the Game driver for live move events
	// (the optional status feed).
	OnMove func(seq int, m model.MoveRecord)

	// BeforeGame, if set, is called with the 1-based game sequence number
	// right before that game starts (used to rotate per-game stderr files).
	BeforeGame func(seq int)

	// StderrSink, if set, returns the per-engine stderr line sink (normally
	// wired to the Result emitter's per-(game,engine) stderr files).
	StderrSink func(engineName string) engine.StderrSink

	// StartGame overrides the first 1-based game sequence number played,
	// for -c/--continue (spec §6). Zero means start at game 1.
	StartGame int
}

func (r *Runner) log() *slog.Logger {
	if r.Log == nil {
		return slogx.DiscardLogger()
	}
	return r.Log
}

func (r *Runner) trace(format string, args ...any) {
	if r.RunTrace != nil {
		r.RunTrace(format, args...)
	}
}

func (r *Runner) stderrSink(name string) engine.StderrSink {
	if r.StderrSink == nil {
		return nil
	}
	return r.StderrSink(name)
}

func paramsFor(plan model.MatchPlan, spec model.EngineSpec) model.TemplateParams {
	return model.TemplateParams{
		Name:        spec.Name,
		MatchDir:    plan.MatchDir,
		BoardSize:   plan.Settings.BoardSize,
		Komi:        plan.Settings.Komi,
		MainTime:    plan.Settings.Time.MainTime,
		PeriodTime:  plan.Settings.Time.PeriodTime,
		PeriodCount: plan.Settings.Time.PeriodCount,
		TimeSystem:  plan.Settings.Time.System.String(),
	}
}

// Run spawns the engines, plays every game of the plan, and quits the
// engines before returning. It returns a non-nil error only for conditions
// the match cannot continue past (engine failed to start, or an engine
// could not be recovered after a crash/timeout per the retry-once rule of
// spec §4.5/§7).
func (r *Runner) Run(ctx context.Context) error {
	plan := r.Plan
	plan.FillDefaults()

	supA := engine.New(plan.EngineA, paramsFor(plan, plan.EngineA), r.log(), r.stderrSink(plan.EngineA.Name))
	supB := engine.New(plan.EngineB, paramsFor(plan, plan.EngineB), r.log(), r.stderrSink(plan.EngineB.Name))

	if err := supA.Start(ctx, true); err != nil {
		return fmt.Errorf("start %s: %w", plan.EngineA.Name, err)
	}
	if err := supB.Start(ctx, true); err != nil {
		supA.Quit(ctx)
		return fmt.Errorf("start %s: %w", plan.EngineB.Name, err)
	}
	r.trace("engine %s started: %s %s", plan.EngineA.Name, supA.ReportedName(), supA.ReportedVersion())
	r.trace("engine %s started: %s %s", plan.EngineB.Name, supB.ReportedName(), supB.ReportedVersion())

	var scorerSup *engine.Supervisor
	var scorer gamedriver.ScorerFunc
	if plan.Scorer != nil {
		spec := *plan.Scorer
		scorer = func(ctx context.Context) (*engine.Supervisor, error) {
			if scorerSup != nil {
				return scorerSup, nil
			}
			s := engine.New(spec, paramsFor(plan, spec), r.log(), r.stderrSink(spec.Name))
			if err := s.Start(ctx, true); err != nil {
				return nil, err
			}
			scorerSup = s
			return s, nil
		}
	}

	defer func() {
		quitCtx := context.Background()
		supA.Quit(quitCtx)
		supB.Quit(quitCtx)
		if scorerSup != nil {
			scorerSup.Quit(quitCtx)
		}
	}()

	driver := &gamedriver.Driver{Plan: plan, Log: r.log(), RunTrace: r.RunTrace, OnMove: r.OnMove}

	start := r.StartGame
	if start < 1 {
		start = 1
	}

	if start == 1 && plan.Waits.Match > 0 {
		select {
		case <-time.After(plan.Waits.Match):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for seq := start; seq <= plan.NumGames; seq++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		black, white := r.sidesFor(plan, seq, supA, supB)

		if r.BeforeGame != nil {
			r.BeforeGame(seq)
		}

		res, poisoned, err := driver.RunGame(ctx, seq, black, white, scorer)
		if err != nil {
			return fmt.Errorf("game %d: %w", seq, err)
		}
		if r.OnResult != nil {
			r.OnResult(res)
		}

		if poisoned.Black || poisoned.White {
			if err := r.restartPoisoned(ctx, poisoned, black, white); err != nil {
				r.recordUnfinished(plan, seq+1)
				return fmt.Errorf("game %d: %w", seq, err)
			}
		}

		if seq < plan.NumGames && plan.Waits.Game > 0 {
			select {
			case <-time.After(plan.Waits.Game):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	r.runPostMatch(ctx, plan, plan.EngineA, supA)
	r.runPostMatch(ctx, plan, plan.EngineB, supB)

	return nil
}

// sidesFor assigns colours for game seq: engine A plays Black on odd-
// numbered games (1-based), White on even-numbered games, per spec §4.5.
func (r *Runner) sidesFor(plan model.MatchPlan, seq int, supA, supB *engine.Supervisor) (black, white gamedriver.Side) {
	a := gamedriver.Side{Sup: supA, Name: plan.EngineA.Name, Ledger: clockctl.NewLedger(plan.Settings.Time)}
	b := gamedriver.Side{Sup: supB, Name: plan.EngineB.Name, Ledger: clockctl.NewLedger(plan.Settings.Time)}
	if seq%2 == 1 {
		a.Color, b.Color = model.ColorBlack, model.ColorWhite
		return a, b
	}
	a.Color, b.Color = model.ColorWhite, model.ColorBlack
	return b, a
}

// restartPoisoned restarts whichever sides the Game driver flagged, per
// spec §4.2/§7: one retry after the first failed restart before giving up
// and terminating the match.
func (r *Runner) restartPoisoned(ctx context.Context, p gamedriver.Poisoned, black, white gamedriver.Side) error {
	restart := func(s gamedriver.Side) error {
		bo, _ := backoff.New(backoff.Options{Min: time.Second, Max: 5 * time.Second, MaxAttempts: 2})
		var lastErr error
		for attempt := 0; attempt < 2; attempt++ {
			if err := s.Sup.Restart(ctx); err != nil {
				lastErr = err
				r.trace("engine %s: restart attempt %d failed: %v", s.Name, attempt+1, err)
				if attempt == 0 {
					if werr := bo.Retry(ctx, err); werr != nil {
						return fmt.Errorf("engine %q: could not recover after crash/timeout: %w", s.Name, lastErr)
					}
				}
				continue
			}
			return nil
		}
		return fmt.Errorf("engine %q: could not recover after crash/timeout: %w", s.Name, lastErr)
	}
	if p.Black {
		if err := restart(black); err != nil {
			return err
		}
	}
	if p.White {
		if err := restart(white); err != nil {
			return err
		}
	}
	return nil
}

// recordUnfinished emits a placeholder Unfinished GameResult for every game
// from startSeq through plan.NumGames, the effect spec §4.5/§7 requires
// when an engine cannot be recovered after a crash/timeout: the match
// stops, but the remaining schedule still needs a .log line each so the
// match's artifacts account for every planned game.
func (r *Runner) recordUnfinished(plan model.MatchPlan, startSeq int) {
	if r.OnResult == nil {
		return
	}
	for seq := startSeq; seq <= plan.NumGames; seq++ {
		blackName, whiteName := plan.EngineA.Name, plan.EngineB.Name
		if seq%2 == 0 {
			blackName, whiteName = whiteName, blackName
		}
		r.OnResult(&model.GameResult{
			Seq:            seq,
			Timestamp:      time.Now(),
			EngineA:        blackName,
			EngineB:        whiteName,
			ColorA:         model.ColorBlack,
			ColorB:         model.ColorWhite,
			StartBoardSize: plan.Settings.BoardSize,
			Komi:           plan.Settings.Komi,
			Time:           plan.Settings.Time,
			Outcome:        model.Unfinished(),
		})
	}
}

func (r *Runner) runPostMatch(ctx context.Context, plan model.MatchPlan, spec model.EngineSpec, sup *engine.Supervisor) {
	for _, c := range model.ExpandCmdLine(spec.PostMatch, paramsFor(plan, spec)) {
		if _, err := sup.Command(ctx, c, plan.GTPTimeouts.GTPTimeout); err != nil {
			r.trace("post-match command failed for %s: %v", spec.Name, err)
		}
	}
}
