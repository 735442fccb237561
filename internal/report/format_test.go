package report

import (
	"strings"
	"testing"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/stretchr/testify/require"
)

func sampleResult() *model.GameResult {
	return &model.GameResult{
		Seq:            1,
		Timestamp:      time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		EngineA:        "alpha",
		EngineB:        "beta",
		ColorA:         model.ColorBlack,
		ColorB:         model.ColorWhite,
		StartBoardSize: 19,
		Komi:           7.5,
		TotalMoves:     3,
		Moves: []model.MoveRecord{
			{Color: model.ColorBlack, Coord: "D4", Elapsed: 500 * time.Millisecond},
			{Color: model.ColorWhite, Coord: "Q16", Elapsed: 750 * time.Millisecond},
			{Color: model.ColorBlack, Coord: "resign"},
		},
	}
}

func TestGtpToSGFSkipsLetterI(t *testing.T) {
	// Column J is the 9th actual column (I is skipped in GTP notation), so
	// it maps to SGF column index 8 ('i'), not index 9 ('j').
	pt, ok := gtpToSGF("J10", 19)
	require.True(t, ok)
	require.Equal(t, "ij", pt)
}

func TestGtpToSGFCoordinates(t *testing.T) {
	// A1 is the bottom-left corner in GTP; SGF's origin is top-left, so A1
	// maps to column 0, row (boardSize-1).
	pt, ok := gtpToSGF("A1", 19)
	require.True(t, ok)
	require.Equal(t, "as", pt)

	// T19 (GTP skips I, so column 18 is "T") is the top-right corner.
	pt, ok = gtpToSGF("T19", 19)
	require.True(t, ok)
	require.Equal(t, "sa", pt)
}

func TestGtpToSGFRejectsOutOfRange(t *testing.T) {
	_, ok := gtpToSGF("Z1", 19)
	require.False(t, ok)
	_, ok = gtpToSGF("A20", 19)
	require.False(t, ok)
}

func TestReasonStringResign(t *testing.T) {
	require.Equal(t, "W+Resign", reasonString(model.Resign(model.ColorBlack)))
	require.Equal(t, "B+Resign", reasonString(model.Resign(model.ColorWhite)))
}

func TestReasonStringOtherKinds(t *testing.T) {
	require.Equal(t, "B+Time", reasonString(model.TimeOut(model.ColorWhite)))
	require.Equal(t, "==", reasonString(model.Jigo()))
	require.Equal(t, "XX", reasonString(model.Passed()))
	require.Equal(t, "IL", reasonString(model.Illegal(model.ColorBlack)))
	require.Equal(t, "W+7.5", reasonString(model.Score(model.ColorBlack, "7.5")))
}

func TestLogLineGrammar(t *testing.T) {
	res := sampleResult()
	res.Outcome = model.Resign(model.ColorBlack) // black (alpha) resigns, white (beta) wins
	line := LogLine(res)
	require.True(t, strings.HasPrefix(line, "260102-15:04:05 [#1] alpha B beta W = beta W+Resign"))
	require.Contains(t, line, "VIO: None")
}

func TestMoveTimesLineGrammar(t *testing.T) {
	res := sampleResult()
	line := MoveTimesLine(res)
	require.Equal(t, "[#1] D4[0.50] Q16[0.75] resign[0.00]", line)
}

func TestSGFRoundTripsBasicRecord(t *testing.T) {
	res := sampleResult()
	res.Outcome = model.Resign(model.ColorBlack) // black (alpha) resigns, white (beta) wins
	sgf := SGF(res)
	require.Contains(t, sgf, "PB[alpha]")
	require.Contains(t, sgf, "PW[beta]")
	require.Contains(t, sgf, "RE[W+R]")
	require.Contains(t, sgf, ";B[")
	require.Contains(t, sgf, ";W[")
	require.Contains(t, sgf, ";B[]") // the final resign move carries an empty point
}
