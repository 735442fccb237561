package clockctl

import (
	"testing"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteViolation(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemAbsolute, MainTime: 10}
	l := NewLedger(s)

	require.False(t, l.Deduct(9*time.Second, true))
	require.Equal(t, time.Second, l.Remaining())

	require.True(t, l.Deduct(2*time.Second, true))
	require.True(t, l.State().Violated)
	require.Equal(t, time.Duration(0), l.Remaining())
}

func TestAbsoluteToleranceAllowsSmallOverrun(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemAbsolute, MainTime: 5, Tolerance: 1}
	l := NewLedger(s)
	require.False(t, l.Deduct(5500*time.Millisecond, true))
}

func TestCanadianRefillsAfterStonesSpent(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemCanadian, MainTime: 0, PeriodTime: 30, PeriodCount: 3}
	l := NewLedger(s)

	// No main time: the first move immediately enters the period and
	// spends its first stone.
	require.False(t, l.Deduct(time.Second, true))
	require.Equal(t, PhasePeriod, l.State().Phase)
	require.Equal(t, 2, l.State().StonesLeft)

	require.False(t, l.Deduct(5*time.Second, true))
	require.Equal(t, 1, l.State().StonesLeft)

	// Third stone of the block: spends the last stone and refills for the
	// next block rather than ending the game.
	require.False(t, l.Deduct(5*time.Second, true))
	require.Equal(t, 3, l.State().StonesLeft)
	require.Equal(t, 30*time.Second, l.State().PeriodLeft)
}

func TestCanadianTimeoutViolation(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemCanadian, MainTime: 0, PeriodTime: 10, PeriodCount: 1}
	l := NewLedger(s)
	require.True(t, l.Deduct(15*time.Second, true))
	require.True(t, l.State().Violated)
}

func TestJapaneseNoPartialBanking(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemJapanese, MainTime: 0, PeriodTime: 30, PeriodCount: 3}
	l := NewLedger(s)

	require.False(t, l.Deduct(10*time.Second, true))
	require.Equal(t, 3, l.State().PeriodsLeft)
	require.Equal(t, 30*time.Second, l.State().PeriodLeft) // reset, not 20s left

	require.False(t, l.Deduct(29*time.Second, true))
	require.Equal(t, 3, l.State().PeriodsLeft)
}

func TestJapaneseExhaustsPeriods(t *testing.T) {
	// A move exceeding the period time spills into (and burns) the next
	// period; one that fits within the period time never banks or burns.
	s := model.TimeSettings{System: model.TimeSystemJapanese, MainTime: 0, PeriodTime: 10, PeriodCount: 2}
	l := NewLedger(s)

	require.False(t, l.Deduct(15*time.Second, true)) // overflows by 5s: burns one period
	require.Equal(t, 1, l.State().PeriodsLeft)
	require.False(t, l.Deduct(15*time.Second, true)) // burns the last period
	require.Equal(t, 0, l.State().PeriodsLeft)
	require.True(t, l.Deduct(15*time.Second, true)) // no periods left: violation
}

func TestNoneSystemNeverViolates(t *testing.T) {
	l := NewLedger(model.TimeSettings{System: model.TimeSystemNone})
	require.False(t, l.Deduct(time.Hour, true))
	require.Equal(t, time.Duration(1<<62-1), l.Remaining())
}

func TestNegativeToleranceDisablesChecking(t *testing.T) {
	s := model.TimeSettings{System: model.TimeSystemAbsolute, MainTime: 1, Tolerance: -1}
	l := NewLedger(s)
	require.False(t, l.Deduct(time.Hour, true))
}
