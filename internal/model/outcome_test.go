package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeWinner(t *testing.T) {
	cases := []struct {
		name       string
		o          GameOutcome
		wantColor  Color
		wantHasWin bool
	}{
		{"resign black loses", Resign(ColorBlack), ColorWhite, true},
		{"resign white loses", Resign(ColorWhite), ColorBlack, true},
		{"timeout", TimeOut(ColorBlack), ColorWhite, true},
		{"illegal", Illegal(ColorWhite), ColorBlack, true},
		{"score", Score(ColorBlack, "7.5"), ColorWhite, true},
		{"jigo has no winner", Jigo(), ColorUnknown, false},
		{"passed has no winner", Passed(), ColorUnknown, false},
		{"unfinished has no winner", Unfinished(), ColorUnknown, false},
		{"error has no winner", Error("boom"), ColorUnknown, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			color, ok := c.o.Winner()
			require.Equal(t, c.wantHasWin, ok)
			if ok {
				require.Equal(t, c.wantColor, color)
			}
		})
	}
}

func TestColorInv(t *testing.T) {
	require.Equal(t, ColorWhite, ColorBlack.Inv())
	require.Equal(t, ColorBlack, ColorWhite.Inv())
	require.Equal(t, ColorUnknown, ColorUnknown.Inv())
}

func TestColorGTP(t *testing.T) {
	require.Equal(t, "black", ColorBlack.GTP())
	require.Equal(t, "white", ColorWhite.GTP())
}

// TestResignedGameMoveTally checks the per-colour move tally that Testable
// Property 1 builds on: the resign move is recorded in the move log as the
// resigning side's move, so both counts together cover every logged move.
// The "less one for resignation" adjustment to TotalMoves is applied by the
// Game driver, not checked here.
func TestResignedGameMoveTally(t *testing.T) {
	res := &GameResult{
		Outcome: Resign(ColorWhite),
		Moves: []MoveRecord{
			{Color: ColorBlack, Coord: "D4"},
			{Color: ColorWhite, Coord: "Q16"},
			{Color: ColorBlack, Coord: "resign"},
		},
	}
	mvA, mvB := 0, 0
	for _, m := range res.Moves {
		if m.Color == ColorBlack {
			mvA++
		} else {
			mvB++
		}
	}
	require.Equal(t, 2, mvA)
	require.Equal(t, 1, mvB)
	require.Equal(t, len(res.Moves), mvA+mvB)
}
