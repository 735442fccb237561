package main

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestPrintGameLineDecisiveOutcome(t *testing.T) {
	res := &model.GameResult{
		Seq:     1,
		EngineA: "alpha",
		EngineB: "beta",
		ColorA:  model.ColorBlack,
		ColorB:  model.ColorWhite,
		Outcome: model.Resign(model.ColorBlack),
		Moves: []model.MoveRecord{
			{Color: model.ColorWhite, Coord: "D4", Elapsed: 2 * time.Second},
		},
	}
	out := captureStdout(t, func() { printGameLine(res, 4) })
	require.Contains(t, out, "game 1/4")
	require.Contains(t, out, "beta")
	require.Contains(t, out, "2s of play")
}

func TestPrintGameLineNonDecisiveOutcome(t *testing.T) {
	res := &model.GameResult{
		Seq:     2,
		EngineA: "alpha",
		EngineB: "beta",
		ColorA:  model.ColorBlack,
		ColorB:  model.ColorWhite,
		Outcome: model.Jigo(),
	}
	out := captureStdout(t, func() { printGameLine(res, 4) })
	require.Contains(t, out, "draw/unscored")
}

func TestRunCommandConstructed(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "run" {
			found = true
		}
	}
	// RunCmd is only registered in main(); here we assert it's constructed
	// and requires exactly one positional argument.
	require.NotNil(t, runCmd)
	require.Equal(t, "run", runCmd.Use)
	_ = found
}
