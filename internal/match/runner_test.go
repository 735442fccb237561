package match

import (
	"context"
	"testing"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/stretchr/testify/require"
)

const passingEngineScript = `while IFS= read -r line; do
  case "$line" in
    list_commands) printf "= play\ngenmove\nquit\n\n" ;;
    name) printf "= fake\n\n" ;;
    version) printf "= 1.0\n\n" ;;
    genmove*) printf "= pass\n\n" ;;
    quit) printf "=\n\n"; exit 0 ;;
    *) printf "=\n\n" ;;
  esac
done`

func enginePlan(numGames int) model.MatchPlan {
	spec := func(name string) model.EngineSpec {
		return model.EngineSpec{Name: name, CmdLine: []string{"/bin/sh", "-c", passingEngineScript}}
	}
	return model.MatchPlan{
		EngineA: spec("alpha"),
		EngineB: spec("beta"),
		Settings: model.GameSettings{
			BoardSize: 9, Komi: 7.5,
			Time: model.TimeSettings{System: model.TimeSystemNone},
		},
		NumGames:               numGames,
		ConsecutivePassesToEnd: 2,
		MatchDir:               "/tmp/testmatch",
	}
}

func TestRunPlaysEveryGameAndAlternatesColor(t *testing.T) {
	plan := enginePlan(2)
	var results []*model.GameResult
	r := &Runner{
		Plan:     plan,
		OnResult: func(res *model.GameResult) { results = append(results, res) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Seq)
	require.Equal(t, "alpha", results[0].EngineA) // alpha plays black on odd games
	require.Equal(t, 2, results[1].Seq)
	require.Equal(t, "beta", results[1].EngineA) // beta plays black on even games
	for _, res := range results {
		require.Equal(t, model.ColorBlack, res.ColorA)
		require.Equal(t, model.OutcomePassed, res.Outcome.Kind)
	}
}

func TestRunHonorsStartGame(t *testing.T) {
	plan := enginePlan(3)
	var seqs []int
	r := &Runner{
		Plan:      plan,
		StartGame: 2,
		OnResult:  func(res *model.GameResult) { seqs = append(seqs, res.Seq) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.Equal(t, []int{2, 3}, seqs)
}

func TestRunCallsBeforeGameHook(t *testing.T) {
	plan := enginePlan(2)
	var calledFor []int
	r := &Runner{
		Plan:       plan,
		BeforeGame: func(seq int) { calledFor = append(calledFor, seq) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.Equal(t, []int{1, 2}, calledFor)
}

func TestRunForwardsOnMoveToDriver(t *testing.T) {
	plan := enginePlan(1)
	var moveCount int
	r := &Runner{
		Plan:   plan,
		OnMove: func(seq int, m model.MoveRecord) { moveCount++ },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.Equal(t, 2, moveCount) // both sides pass once
}
