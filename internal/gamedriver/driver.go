// Package gamedriver implements the Game driver from spec §4.4: it runs
// exactly one game between two already-started engine.Supervisors, driving
// the GTP move loop, the time-control ledgers and the end-of-game scoring
// handoff to an optional scorer engine.
package gamedriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dumbarb/dumbarb/internal/clockctl"
	"github.com/dumbarb/dumbarb/internal/engine"
	"github.com/dumbarb/dumbarb/internal/gtp"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/slogx"
)

// Side bundles one playing engine with its colour and clock ledger.
type Side struct {
	Sup    *engine.Supervisor
	Name   string
	Color  model.Color
	Ledger *clockctl.Ledger
}

// ScorerFunc lazily acquires the scorer engine (spawning it on first use),
// per spec §4.4 step 4.
type ScorerFunc func(ctx context.Context) (*engine.Supervisor, error)

// Driver runs games for one match.
type Driver struct {
	Plan   model.MatchPlan
	Log    *slog.Logger
	// RunTrace receives one free-form line per notable event, feeding the
	// Result emitter's .run file (spec §4.6).
	RunTrace func(format string, args ...any)
	// OnMove, if set, receives each move as it is recorded, feeding the
	// optional live status feed.
	OnMove func(seq int, m model.MoveRecord)
}

func (d *Driver) log() *slog.Logger {
	if d.Log == nil {
		return slogx.DiscardLogger()
	}
	return d.Log
}

func (d *Driver) trace(format string, args ...any) {
	if d.RunTrace != nil {
		d.RunTrace(format, args...)
	}
}

func (d *Driver) emitMove(seq int, res *model.GameResult) {
	if d.OnMove != nil && len(res.Moves) > 0 {
		d.OnMove(seq, res.Moves[len(res.Moves)-1])
	}
}

// Poisoned reports, after RunGame returns, which sides' engines must be
// restarted before the next game: the transport failed (timeout or crash),
// or the engine answered genmove, or a non-illegal play, with an error
// reply, per spec §4.2/§7.
type Poisoned struct {
	Black, White bool
}

// RunGame plays one game to completion (or to cancellation) and returns the
// GameResult plus which sides need restarting.
func (d *Driver) RunGame(ctx context.Context, seq int, black, white Side, scorer ScorerFunc) (*model.GameResult, Poisoned, error) {
	settings := d.Plan.Settings
	res := &model.GameResult{
		Seq:            seq,
		Timestamp:      time.Now(),
		EngineA:        black.Name,
		EngineB:        white.Name,
		ColorA:         black.Color,
		ColorB:         white.Color,
		StartBoardSize: settings.BoardSize,
		Komi:           settings.Komi,
		Time:           settings.Time,
	}

	var poisoned Poisoned

	setup := func(s Side) error {
		to := d.Plan.GTPTimeouts.GTPTimeout
		cmds := []string{
			fmt.Sprintf("boardsize %d", settings.BoardSize),
			fmt.Sprintf("komi %v", settings.Komi),
		}
		for _, c := range cmds {
			if _, err := s.Sup.Command(ctx, c, to); err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
		}
		if err := d.setupTimeControl(ctx, s.Sup, settings.Time); err != nil {
			return fmt.Errorf("time control setup: %w", err)
		}
		if _, err := s.Sup.Command(ctx, "clear_board", to); err != nil {
			return fmt.Errorf("clear_board: %w", err)
		}
		for _, c := range s.Sup.PreGameCommands() {
			_, _ = s.Sup.Command(ctx, c, to)
		}
		return nil
	}
	if err := setup(black); err != nil {
		res.Outcome = model.ErrorWithReason(err.Error(), "EE")
		return res, poisoned, nil
	}
	if err := setup(white); err != nil {
		res.Outcome = model.ErrorWithReason(err.Error(), "EE")
		return res, poisoned, nil
	}

	sides := map[model.Color]Side{black.Color: black, white.Color: white}
	toMove := model.ColorBlack
	consecutivePasses := 0
	moveNum := 0

	outcome := model.Unfinished()
	scoringPhase := false

loop:
	for {
		select {
		case <-ctx.Done():
			outcome = model.Unfinished()
			break loop
		default:
		}

		cur := sides[toMove]
		other := sides[toMove.Inv()]
		moveNum++

		if err := d.sendTimeLeft(ctx, cur); err != nil {
			d.log().Warn("time_left failed", slog.String("engine", cur.Name), slogx.Err(err))
		}

		budget := cur.Ledger.Budget()
		var timeout time.Duration
		if settings.Time.System == model.TimeSystemNone {
			timeout = d.Plan.GTPTimeouts.GenmoveUntimedTO
		} else {
			timeout = budget + d.Plan.GTPTimeouts.GenmoveExtra
		}

		t0 := time.Now()
		resp, err := cur.Sup.Command(ctx, "genmove "+toMove.GTP(), timeout)
		elapsed := time.Since(t0)

		violated := cur.Ledger.Deduct(elapsed, d.Plan.EnforceTime)
		if violated {
			res.Violations = append(res.Violations, model.Violation{
				Engine: cur.Name, MoveNum: moveNum, Elapsed: elapsed,
			})
		}

		if err != nil {
			isTimeout := isTimeoutErr(err)
			res.Moves = append(res.Moves, model.MoveRecord{Color: toMove, Coord: "?", Elapsed: elapsed})
			d.emitMove(seq, res)
			if isTimeout {
				outcome = model.TimeOut(toMove)
				markPoisoned(&poisoned, toMove)
				break loop
			}
			outcome = model.ErrorWithReason(err.Error(), "EE")
			markPoisoned(&poisoned, toMove)
			break loop
		}

		if violated && d.Plan.EnforceTime {
			res.Moves = append(res.Moves, model.MoveRecord{Color: toMove, Coord: strings.Fields(resp.Body)[0], Elapsed: elapsed})
			d.emitMove(seq, res)
			outcome = model.TimeOut(toMove)
			break loop
		}

		coord := strings.TrimSpace(resp.Body)
		res.Moves = append(res.Moves, model.MoveRecord{Color: toMove, Coord: coord, Elapsed: elapsed})
		d.emitMove(seq, res)

		switch strings.ToLower(coord) {
		case "resign":
			outcome = model.Resign(toMove)
			break loop
		case "pass":
			consecutivePasses++
			if consecutivePasses >= d.Plan.ConsecutivePassesToEnd {
				scoringPhase = true
				break loop
			}
		default:
			consecutivePasses = 0
			playTo := d.Plan.GTPTimeouts.GTPTimeout
			_, err := other.Sup.Command(ctx, fmt.Sprintf("play %s %s", toMove.GTP(), coord), playTo)
			if err != nil {
				if ee, ok := asEngineError(err); ok && ee.ContainsIllegal() {
					outcome = model.Illegal(toMove)
					break loop
				}
				outcome = model.ErrorWithReason(err.Error(), "EE")
				markPoisoned(&poisoned, toMove.Inv())
				break loop
			}
		}

		if d.Plan.Waits.Move > 0 {
			select {
			case <-time.After(d.Plan.Waits.Move):
			case <-ctx.Done():
				break loop
			}
		}
		toMove = toMove.Inv()
	}

	if scoringPhase {
		outcome = d.score(ctx, res, scorer)
	}
	res.Outcome = outcome

	for _, s := range []Side{black, white} {
		if (s.Color == model.ColorBlack && poisoned.Black) || (s.Color == model.ColorWhite && poisoned.White) {
			// This side's engine failed this game and the Match runner will
			// restart it before the next game. After a timeout its channel
			// is cancelled, and sending it more commands now would race the
			// abandoned readFrame goroutine against a new one.
			continue
		}
		for _, c := range s.Sup.PostGameCommands() {
			if _, err := s.Sup.Command(ctx, c, d.Plan.GTPTimeouts.GTPTimeout); err != nil {
				d.trace("post-game command failed for %s: %v", s.Name, err)
			}
		}
	}

	d.finishStats(res)
	return res, poisoned, nil
}

// score implements spec §4.4 step 4: if no scorer is configured, the game
// simply ends Passed. Otherwise it lazily acquires the scorer engine,
// replays the full move history into it via play commands, and asks it for
// final_score.
func (d *Driver) score(ctx context.Context, res *model.GameResult, scorer ScorerFunc) model.GameOutcome {
	if scorer == nil {
		return model.Passed()
	}
	sc, err := scorer(ctx)
	if err != nil {
		return model.ErrorWithReason(fmt.Sprintf("scorer acquire: %v", err), "SD")
	}

	to := d.Plan.GTPTimeouts.GTPTimeout
	cmds := []string{
		fmt.Sprintf("boardsize %d", res.StartBoardSize),
		fmt.Sprintf("komi %v", res.Komi),
		"clear_board",
	}
	for _, c := range cmds {
		if _, err := sc.Command(ctx, c, to); err != nil {
			return model.ErrorWithReason(fmt.Sprintf("scorer setup %q: %v", c, err), "SD")
		}
	}
	for i, m := range res.Moves {
		if strings.EqualFold(m.Coord, "pass") || strings.EqualFold(m.Coord, "resign") {
			continue
		}
		if _, err := sc.Command(ctx, fmt.Sprintf("play %s %s", m.Color.GTP(), m.Coord), to); err != nil {
			return model.ErrorWithReason(fmt.Sprintf("scorer replay move %d: %v", i+1, err), "SD")
		}
	}

	resp, err := sc.Command(ctx, "final_score", d.Plan.GTPTimeouts.ScorerTO)
	if err != nil {
		return model.ErrorWithReason(fmt.Sprintf("final_score: %v", err), "SD")
	}
	return parseFinalScore(resp.Body)
}

// parseFinalScore parses a final_score response body per GTP's
// "W+<margin>" / "B+<margin>" / "0" / "Draw" grammar, per spec §4.4 step 4.
func parseFinalScore(body string) model.GameOutcome {
	s := strings.TrimSpace(body)
	switch strings.ToLower(s) {
	case "0", "draw", "jigo":
		return model.Jigo()
	}
	if len(s) >= 2 && (s[0] == 'W' || s[0] == 'w' || s[0] == 'B' || s[0] == 'b') && s[1] == '+' {
		winner := model.ColorWhite
		if s[0] == 'B' || s[0] == 'b' {
			winner = model.ColorBlack
		}
		margin := s[2:]
		return model.Score(winner.Inv(), margin)
	}
	return model.ErrorWithReason(fmt.Sprintf("unparseable final_score reply %q", s), "SD")
}

func markPoisoned(p *Poisoned, c model.Color) {
	switch c {
	case model.ColorBlack:
		p.Black = true
	case model.ColorWhite:
		p.White = true
	}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, gtp.ErrTimeout)
}

func asEngineError(err error) (*gtp.EngineError, bool) {
	var ee *gtp.EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

func (d *Driver) sendTimeLeft(ctx context.Context, s Side) error {
	if d.Plan.Settings.Time.System == model.TimeSystemNone {
		return nil
	}
	secs := int(s.Ledger.Remaining().Round(time.Second) / time.Second)
	stones := s.Ledger.StonesOrPeriods()
	_, err := s.Sup.Command(ctx, fmt.Sprintf("time_left %s %d %d", s.Color.GTP(), secs, stones), d.Plan.GTPTimeouts.GTPTimeout)
	return err
}

// setupTimeControl sends time_settings or kgs-time_settings, consulting the
// engine's advertised command set per spec §4.2's last paragraph.
func (d *Driver) setupTimeControl(ctx context.Context, sup *engine.Supervisor, t model.TimeSettings) error {
	to := d.Plan.GTPTimeouts.GTPTimeout
	switch t.System {
	case model.TimeSystemNone:
		_, err := sup.Command(ctx, "time_settings 0 0 0", to)
		return err
	case model.TimeSystemAbsolute:
		_, err := sup.Command(ctx, fmt.Sprintf("time_settings %s 0 0", trimSecs(t.MainTime)), to)
		return err
	case model.TimeSystemCanadian:
		_, err := sup.Command(ctx, fmt.Sprintf("time_settings %s %s %d", trimSecs(t.MainTime), trimSecs(t.PeriodTime), t.PeriodCount), to)
		return err
	case model.TimeSystemJapanese:
		if sup.Supports("kgs-time_settings") {
			_, err := sup.Command(ctx, fmt.Sprintf("kgs-time_settings byoyomi %s %s %d", trimSecs(t.MainTime), trimSecs(t.PeriodTime), t.PeriodCount), to)
			return err
		}
		d.trace("engine %s lacks kgs-time_settings; approximating japanese byo-yomi as canadian(%s stones in %s)",
			sup.Name(), strconv.Itoa(t.PeriodCount), trimSecs(t.PeriodTime))
		_, err := sup.Command(ctx, fmt.Sprintf("time_settings %s %s %d", trimSecs(t.MainTime), trimSecs(t.PeriodTime), t.PeriodCount), to)
		return err
	default:
		return fmt.Errorf("unknown time system %v", t.System)
	}
}

func trimSecs(f float64) string { return strconv.FormatInt(int64(f), 10) }

func (d *Driver) finishStats(res *model.GameResult) {
	var a, b model.SideStats
	for _, m := range res.Moves {
		var s *model.SideStats
		if m.Color == res.ColorA {
			s = &a
		} else {
			s = &b
		}
		s.MoveCount++
		s.TotalThink += m.Elapsed
		if m.Elapsed > s.MaxThink {
			s.MaxThink = m.Elapsed
		}
	}
	if a.MoveCount > 0 {
		a.AvgThink = a.TotalThink / time.Duration(a.MoveCount)
	}
	if b.MoveCount > 0 {
		b.AvgThink = b.TotalThink / time.Duration(b.MoveCount)
	}
	res.SideA, res.SideB = a, b
	res.TotalMoves = a.MoveCount + b.MoveCount
	if res.Outcome.Kind == model.OutcomeResign {
		res.TotalMoves--
	}
}
