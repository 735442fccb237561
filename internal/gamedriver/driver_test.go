package gamedriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dumbarb/dumbarb/internal/clockctl"
	"github.com/dumbarb/dumbarb/internal/engine"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/stretchr/testify/require"
)

// scriptedEngine is a POSIX-sh GTP v2 stub. Commands not matched by a case
// fall through to a generic "=\n\n" ack, which is enough to satisfy the
// driver's boardsize/komi/time_settings/clear_board/play setup traffic.
func scriptedEngine(t *testing.T, genmoveReply string) *engine.Supervisor {
	t.Helper()
	script := `while IFS= read -r line; do
  case "$line" in
    list_commands) printf "= play\ngenmove\nquit\n\n" ;;
    name) printf "= fake\n\n" ;;
    version) printf "= 1.0\n\n" ;;
    genmove*) printf "= ` + genmoveReply + `\n\n" ;;
    quit) printf "=\n\n"; exit 0 ;;
    *) printf "=\n\n" ;;
  esac
done`
	spec := model.EngineSpec{Name: "fake", CmdLine: []string{"/bin/sh", "-c", script}}
	sup := engine.New(spec, model.TemplateParams{}, nil, nil)
	require.NoError(t, sup.Start(context.Background(), true))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sup.Quit(ctx)
	})
	return sup
}

func untimedSettings() model.GameSettings {
	return model.GameSettings{BoardSize: 19, Komi: 7.5, Time: model.TimeSettings{System: model.TimeSystemNone}}
}

func newDriver(settings model.GameSettings) *Driver {
	return &Driver{
		Plan: model.MatchPlan{
			Settings: settings,
			GTPTimeouts: model.GTPTimeouts{
				GTPTimeout:       2 * time.Second,
				GenmoveExtra:     time.Second,
				GenmoveUntimedTO: 2 * time.Second,
				ScorerTO:         2 * time.Second,
			},
			ConsecutivePassesToEnd: 2,
		},
	}
}

func TestRunGameBothPassEndsInPassedOutcome(t *testing.T) {
	settings := untimedSettings()
	black := Side{Sup: scriptedEngine(t, "pass"), Name: "alpha", Color: model.ColorBlack, Ledger: clockctl.NewLedger(settings.Time)}
	white := Side{Sup: scriptedEngine(t, "pass"), Name: "beta", Color: model.ColorWhite, Ledger: clockctl.NewLedger(settings.Time)}

	d := newDriver(settings)
	res, poisoned, err := d.RunGame(context.Background(), 1, black, white, nil)
	require.NoError(t, err)
	require.False(t, poisoned.Black || poisoned.White)
	require.Equal(t, model.OutcomePassed, res.Outcome.Kind)
	require.Len(t, res.Moves, 2)
}

func TestRunGameResignEndsImmediately(t *testing.T) {
	settings := untimedSettings()
	black := Side{Sup: scriptedEngine(t, "resign"), Name: "alpha", Color: model.ColorBlack, Ledger: clockctl.NewLedger(settings.Time)}
	white := Side{Sup: scriptedEngine(t, "D4"), Name: "beta", Color: model.ColorWhite, Ledger: clockctl.NewLedger(settings.Time)}

	d := newDriver(settings)
	res, _, err := d.RunGame(context.Background(), 1, black, white, nil)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeResign, res.Outcome.Kind)
	winner, ok := res.Outcome.Winner()
	require.True(t, ok)
	require.Equal(t, model.ColorWhite, winner)
	require.Len(t, res.Moves, 1)
}

func TestRunGameTracksOnMoveHook(t *testing.T) {
	settings := untimedSettings()
	black := Side{Sup: scriptedEngine(t, "pass"), Name: "alpha", Color: model.ColorBlack, Ledger: clockctl.NewLedger(settings.Time)}
	white := Side{Sup: scriptedEngine(t, "pass"), Name: "beta", Color: model.ColorWhite, Ledger: clockctl.NewLedger(settings.Time)}

	var moves []model.MoveRecord
	d := newDriver(settings)
	d.OnMove = func(seq int, m model.MoveRecord) {
		require.Equal(t, 7, seq)
		moves = append(moves, m)
	}
	_, _, err := d.RunGame(context.Background(), 7, black, white, nil)
	require.NoError(t, err)
	require.Len(t, moves, 2)
}

// markerEngine is a scriptedEngine variant that, on genmove, either replies
// immediately or hangs well past any reasonable timeout, and records receipt
// of a "postgame-marker" command by appending a line to markerFile.
func markerEngine(t *testing.T, hang bool, markerFile string) *engine.Supervisor {
	t.Helper()
	genmoveAction := `printf "= D4\n\n"`
	if hang {
		genmoveAction = `sleep 5`
	}
	script := `while IFS= read -r line; do
  case "$line" in
    list_commands) printf "= play\ngenmove\nquit\n\n" ;;
    name) printf "= fake\n\n" ;;
    version) printf "= 1.0\n\n" ;;
    genmove*) ` + genmoveAction + ` ;;
    postgame-marker) echo hit >> "` + markerFile + `"; printf "=\n\n" ;;
    quit) printf "=\n\n"; exit 0 ;;
    *) printf "=\n\n" ;;
  esac
done`
	spec := model.EngineSpec{
		Name:     "fake",
		CmdLine:  []string{"/bin/sh", "-c", script},
		PostGame: []string{"postgame-marker"},
	}
	sup := engine.New(spec, model.TemplateParams{}, nil, nil)
	require.NoError(t, sup.Start(context.Background(), true))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sup.Quit(ctx)
	})
	return sup
}

// TestRunGamePostGameSkipsPoisonedSide guards against issuing a second Send
// on a transport whose genmove already timed out: the timed-out side's
// readFrame goroutine from that call is still blocked on its *bufio.Reader,
// so a PostGame command on that same side would race a new read against it.
func TestRunGamePostGameSkipsPoisonedSide(t *testing.T) {
	dir := t.TempDir()
	blackMarker := filepath.Join(dir, "black-marker")
	whiteMarker := filepath.Join(dir, "white-marker")

	settings := untimedSettings()
	black := Side{Sup: markerEngine(t, true, blackMarker), Name: "alpha", Color: model.ColorBlack, Ledger: clockctl.NewLedger(settings.Time)}
	white := Side{Sup: markerEngine(t, false, whiteMarker), Name: "beta", Color: model.ColorWhite, Ledger: clockctl.NewLedger(settings.Time)}

	d := newDriver(settings)
	res, poisoned, err := d.RunGame(context.Background(), 1, black, white, nil)
	require.NoError(t, err)
	require.True(t, poisoned.Black)
	require.False(t, poisoned.White)
	require.Equal(t, model.OutcomeTime, res.Outcome.Kind)

	_, err = os.Stat(blackMarker)
	require.True(t, os.IsNotExist(err), "poisoned side must not receive post-game commands")

	whiteContent, err := os.ReadFile(whiteMarker)
	require.NoError(t, err)
	require.Contains(t, string(whiteContent), "hit")
}

func TestParseFinalScore(t *testing.T) {
	o := parseFinalScore("W+7.5")
	winner, ok := o.Winner()
	require.True(t, ok)
	require.Equal(t, model.ColorWhite, winner)

	o = parseFinalScore("B+R")
	winner, ok = o.Winner()
	require.True(t, ok)
	require.Equal(t, model.ColorBlack, winner)

	o = parseFinalScore("0")
	require.Equal(t, model.OutcomeJigo, o.Kind)

	o = parseFinalScore("garbage")
	require.Equal(t, model.OutcomeError, o.Kind)
}
