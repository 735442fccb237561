// Package clockctl implements the per-side time-control state machine from
// spec §4.3: absolute, Canadian byo-yomi and Japanese byo-yomi, plus the
// untimed "none" system. It owns no I/O; it is driven purely by
// Ledger.Deduct(elapsed) calls measured around each genmove by the caller.
package clockctl

import (
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
)

// Phase distinguishes whether a side is still spending its main time or has
// entered overtime (Canadian/Japanese only; Absolute has no Period).
type Phase int8

const (
	PhaseMain Phase = iota
	PhasePeriod
)

// State is the ClockState from spec §3.
type State struct {
	Phase       Phase
	MainLeft    time.Duration
	PeriodLeft  time.Duration
	StonesLeft  int
	PeriodsLeft int
	Violated    bool
}

// Ledger tracks one side's clock across one game.
type Ledger struct {
	settings model.TimeSettings
	state    State
}

// NewLedger builds a fresh Ledger from TimeSettings, per spec §3's
// "initial values derive directly from TimeSettings".
func NewLedger(s model.TimeSettings) *Ledger {
	l := &Ledger{settings: s}
	l.state = State{Phase: PhaseMain, MainLeft: secs(s.MainTime)}
	switch s.System {
	case model.TimeSystemCanadian:
		l.state.StonesLeft = 0 // stones are only meaningful once in Period
	case model.TimeSystemJapanese:
		l.state.PeriodsLeft = s.PeriodCount
	}
	return l
}

func secs(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func tolDur(s model.TimeSettings) time.Duration {
	if s.Tolerance < 0 {
		return -1
	}
	return secs(s.Tolerance)
}

// State returns a copy of the current clock state.
func (l *Ledger) State() State { return l.state }

// Remaining is the time left to advertise to the engine via time_left: the
// seconds left in the active phase (Main or Period), or an arbitrarily
// large duration for the untimed system.
func (l *Ledger) Remaining() time.Duration {
	switch l.settings.System {
	case model.TimeSystemNone:
		return time.Duration(1<<62 - 1)
	case model.TimeSystemAbsolute:
		return l.state.MainLeft
	default:
		if l.state.Phase == PhaseMain {
			return l.state.MainLeft
		}
		return l.state.PeriodLeft
	}
}

// StonesOrPeriods is the "M" component of time_left: stones left in the
// current Canadian block, or periods left under Japanese byo-yomi, else 0.
func (l *Ledger) StonesOrPeriods() int {
	switch l.settings.System {
	case model.TimeSystemCanadian:
		if l.state.Phase == PhasePeriod {
			return l.state.StonesLeft
		}
		return 0
	case model.TimeSystemJapanese:
		if l.state.Phase == PhasePeriod {
			return l.state.PeriodsLeft
		}
		return 0
	default:
		return 0
	}
}

// Budget is the remaining-budget for the genmove timeout from spec §4.3:
// the sum of all time the side could still spend before a timeout
// violation, i.e. main plus all remaining periods.
func (l *Ledger) Budget() time.Duration {
	switch l.settings.System {
	case model.TimeSystemNone:
		return time.Duration(1<<62 - 1)
	case model.TimeSystemAbsolute:
		return l.state.MainLeft
	case model.TimeSystemCanadian:
		if l.state.Phase == PhaseMain {
			return l.state.MainLeft + secs(l.settings.PeriodTime)
		}
		return l.state.PeriodLeft
	case model.TimeSystemJapanese:
		if l.state.Phase == PhaseMain {
			return l.state.MainLeft + time.Duration(l.settings.PeriodCount)*secs(l.settings.PeriodTime)
		}
		return l.state.PeriodLeft + time.Duration(l.state.PeriodsLeft-1)*secs(l.settings.PeriodTime)
	default:
		return 0
	}
}

// Deduct consumes elapsed from the clock and reports whether this move
// violated the budget. enforce decides whether, on violation, the ledger
// clamps itself to "one stone/period left" (per spec §4.3's
// after-violation-without-enforcement rule) versus leaving the side
// visibly out of time for a caller that will end the game regardless.
func (l *Ledger) Deduct(elapsed time.Duration, enforce bool) (violated bool) {
	switch l.settings.System {
	case model.TimeSystemNone:
		return false
	case model.TimeSystemAbsolute:
		return l.deductAbsolute(elapsed, enforce)
	case model.TimeSystemCanadian:
		return l.deductCanadian(elapsed, enforce)
	case model.TimeSystemJapanese:
		return l.deductJapanese(elapsed, enforce)
	default:
		return false
	}
}

func (l *Ledger) deductAbsolute(elapsed time.Duration, enforce bool) bool {
	tol := tolDur(l.settings)
	l.state.MainLeft -= elapsed
	violated := l.settings.CheckingEnabled() && l.state.MainLeft < -tol
	if violated {
		l.state.Violated = true
		if l.state.MainLeft < 0 {
			l.state.MainLeft = 0
		}
	}
	return violated
}

func (l *Ledger) deductCanadian(elapsed time.Duration, enforce bool) bool {
	tol := tolDur(l.settings)
	periodTime := secs(l.settings.PeriodTime)

	if l.state.Phase == PhaseMain {
		if elapsed <= l.state.MainLeft {
			l.state.MainLeft -= elapsed
			return false
		}
		residual := elapsed - l.state.MainLeft
		l.state.MainLeft = 0
		l.state.Phase = PhasePeriod
		l.state.PeriodLeft = periodTime
		l.state.StonesLeft = l.settings.PeriodCount
		elapsed = residual
	}

	// A violation pre-empts the refill: checking happens before the stone
	// is spent, so "no refill occurred for it" holds by construction for
	// every violating move (spec §4.3).
	l.state.PeriodLeft -= elapsed
	if l.settings.CheckingEnabled() && l.state.PeriodLeft < -tol {
		l.state.Violated = true
		if !enforce {
			l.state.PeriodLeft = periodTime
			l.state.StonesLeft = 1
		}
		return true
	}
	l.state.StonesLeft--
	if l.state.StonesLeft <= 0 {
		l.state.PeriodLeft = periodTime
		l.state.StonesLeft = l.settings.PeriodCount
	}
	return false
}

func (l *Ledger) deductJapanese(elapsed time.Duration, enforce bool) bool {
	tol := tolDur(l.settings)
	periodTime := secs(l.settings.PeriodTime)

	if l.state.Phase == PhaseMain {
		if elapsed <= l.state.MainLeft {
			l.state.MainLeft -= elapsed
			return false
		}
		residual := elapsed - l.state.MainLeft
		l.state.MainLeft = 0
		l.state.Phase = PhasePeriod
		l.state.PeriodsLeft = l.settings.PeriodCount
		l.state.PeriodLeft = periodTime
		elapsed = residual
	}

	// A move that finishes within the current period never banks unspent
	// time: win or lose, the next move again sees a full fresh period
	// (spec §4.3: "the period is reset"). A move spanning k full periods
	// burns k of periodsLeft and still resets to a full period for next
	// time, since the final (k+1)-th period it lands in was only
	// partially used.
	remaining := elapsed
	full := 0
	for remaining > periodTime+tol {
		remaining -= periodTime
		full++
	}
	l.state.PeriodLeft = periodTime
	l.state.PeriodsLeft -= full

	violated := l.settings.CheckingEnabled() && l.state.PeriodsLeft < 0
	if violated {
		l.state.Violated = true
		if !enforce {
			l.state.PeriodsLeft = 1
			l.state.PeriodLeft = periodTime
		}
	}
	return violated
}
