package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
)

// winnerLetter returns "B" or "W" for the reason/winner columns of the log
// line, per spec §6.
func winnerLetter(c model.Color) string { return c.String() }

// reasonString renders the §6 `reason` token for one outcome.
func reasonString(o model.GameOutcome) string {
	switch o.Kind {
	case model.OutcomeResign:
		return winnerLetter(o.Loser.Inv()) + "+Resign"
	case model.OutcomeTime:
		return winnerLetter(o.Loser.Inv()) + "+Time"
	case model.OutcomeScore:
		return winnerLetter(o.Loser.Inv()) + "+" + o.Margin
	case model.OutcomeJigo:
		return "=="
	case model.OutcomePassed:
		return "XX"
	case model.OutcomeIllegal:
		return "IL"
	case model.OutcomeError:
		if o.Margin != "" {
			return o.Margin
		}
		return "EE"
	default:
		return "EE"
	}
}

// winnerToken renders the `<winner|Jigo|None|UFIN|ERR>` column: the name of
// the winning engine, or one of the fixed tokens for a non-decisive outcome.
func winnerToken(res *model.GameResult) string {
	switch res.Outcome.Kind {
	case model.OutcomeJigo:
		return "Jigo"
	case model.OutcomePassed:
		return "None"
	case model.OutcomeUnfinished:
		return "UFIN"
	case model.OutcomeError:
		return "ERR"
	}
	c, ok := res.Outcome.Winner()
	if !ok {
		return "ERR"
	}
	if c == res.ColorA {
		return res.EngineA
	}
	return res.EngineB
}

func fmtSecs(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64)
}

func formatViolations(vs []model.Violation) string {
	if len(vs) == 0 {
		return "None"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%s %d[%s]", v.Engine, v.MoveNum, fmtSecs(v.Elapsed))
	}
	return strings.Join(parts, ",")
}

// LogLine renders the .log line for res, per spec §6.
func LogLine(res *model.GameResult) string {
	ts := res.Timestamp.Format("060102-15:04:05")
	return fmt.Sprintf(
		"%s [#%d] %s %s %s %s = %s %s %d %d %d %s %s %s %s %s %s VIO: %s",
		ts, res.Seq,
		res.EngineA, res.ColorA.String(),
		res.EngineB, res.ColorB.String(),
		winnerToken(res), reasonString(res.Outcome),
		res.TotalMoves, res.SideA.MoveCount, res.SideB.MoveCount,
		fmtSecs(res.SideA.TotalThink), fmtSecs(res.SideA.AvgThink), fmtSecs(res.SideA.MaxThink),
		fmtSecs(res.SideB.TotalThink), fmtSecs(res.SideB.AvgThink), fmtSecs(res.SideB.MaxThink),
		formatViolations(res.Violations),
	)
}

// MoveTimesLine renders the .mvtimes line for res, per spec §6.
func MoveTimesLine(res *model.GameResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[#%d]", res.Seq)
	for _, m := range res.Moves {
		fmt.Fprintf(&b, " %s[%s]", m.Coord, fmtSecs(m.Elapsed))
	}
	return b.String()
}

// sgfResult renders the SGF RE[] property value for an outcome.
func sgfResult(o model.GameOutcome) string {
	switch o.Kind {
	case model.OutcomeResign:
		return winnerLetter(o.Loser.Inv()) + "+R"
	case model.OutcomeTime:
		return winnerLetter(o.Loser.Inv()) + "+T"
	case model.OutcomeScore:
		return winnerLetter(o.Loser.Inv()) + "+" + o.Margin
	case model.OutcomeJigo:
		return "0"
	case model.OutcomeIllegal:
		return winnerLetter(o.Loser.Inv()) + "+F"
	default:
		return "Void"
	}
}

// gtpToSGF converts a GTP vertex ("Q16") to an SGF point ("pc") for the
// given board size. GTP vertex columns skip the letter I; SGF points don't.
func gtpToSGF(vertex string, boardSize int) (string, bool) {
	if len(vertex) < 2 {
		return "", false
	}
	colCh := vertex[0]
	if colCh >= 'a' && colCh <= 'z' {
		colCh -= 'a' - 'A'
	}
	if colCh < 'A' || colCh > 'Z' {
		return "", false
	}
	col := int(colCh - 'A')
	if colCh > 'I' {
		col--
	}
	row, err := strconv.Atoi(vertex[1:])
	if err != nil || row < 1 || row > boardSize {
		return "", false
	}
	if col < 0 || col >= boardSize {
		return "", false
	}
	sgfCol := byte('a' + col)
	sgfRow := byte('a' + (boardSize - row))
	return string([]byte{sgfCol, sgfRow}), true
}

// SGF renders the full SGF game record for res, per spec §4.6/§6. The first
// line carries engines/date/result so Testable Property 7's byte-equal
// comparison can skip it.
func SGF(res *model.GameResult) string {
	blackName, whiteName := res.EngineA, res.EngineB
	if res.ColorA == model.ColorWhite {
		blackName, whiteName = res.EngineB, res.EngineA
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; generated by dumbarb PB[%s] PW[%s] DT[%s] RE[%s]\n",
		blackName, whiteName, res.Timestamp.Format(time.DateOnly), sgfResult(res.Outcome))
	fmt.Fprintf(&b, "(;GM[1]FF[4]SZ[%d]KM[%s]PB[%s]PW[%s]DT[%s]RE[%s]",
		res.StartBoardSize, strconv.FormatFloat(res.Komi, 'f', -1, 64),
		blackName, whiteName, res.Timestamp.Format(time.DateOnly), sgfResult(res.Outcome))
	for _, m := range res.Moves {
		tag := "B"
		if m.Color == model.ColorWhite {
			tag = "W"
		}
		switch strings.ToLower(m.Coord) {
		case "pass", "resign":
			fmt.Fprintf(&b, ";%s[]", tag)
		default:
			if pt, ok := gtpToSGF(m.Coord, res.StartBoardSize); ok {
				fmt.Fprintf(&b, ";%s[%s]", tag, pt)
			}
		}
	}
	b.WriteString(")\n")
	return b.String()
}
