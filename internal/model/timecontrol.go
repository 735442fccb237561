package model

import "fmt"

// TimeSystem selects which of the four time-control variants a game uses.
type TimeSystem int8

const (
	TimeSystemNone TimeSystem = iota
	TimeSystemAbsolute
	TimeSystemCanadian
	TimeSystemJapanese
)

func (s TimeSystem) String() string {
	switch s {
	case TimeSystemNone:
		return "none"
	case TimeSystemAbsolute:
		return "absolute"
	case TimeSystemCanadian:
		return "canadian"
	case TimeSystemJapanese:
		return "japanese"
	default:
		return "unknown"
	}
}

// TimeSettings describes one side's (or, since both sides always share
// settings in dumbarb, the game's) time control. See spec §3.
type TimeSettings struct {
	System      TimeSystem
	MainTime    float64 // seconds
	PeriodTime  float64 // seconds
	PeriodCount int
	// Tolerance is added to a budget before an overrun counts as a
	// violation. Negative disables violation checking entirely.
	Tolerance float64
}

func (s TimeSettings) Clone() TimeSettings { return s }

// Validate checks the invariants from spec §3.
func (s TimeSettings) Validate() error {
	if s.MainTime < 0 {
		return fmt.Errorf("negative main time")
	}
	if s.PeriodTime < 0 {
		return fmt.Errorf("negative period time")
	}
	if s.PeriodCount < 0 {
		return fmt.Errorf("negative period count")
	}
	switch s.System {
	case TimeSystemCanadian, TimeSystemJapanese:
		if s.PeriodTime <= 0 {
			return fmt.Errorf("%v requires period-time > 0", s.System)
		}
		if s.PeriodCount < 1 {
			return fmt.Errorf("%v requires period-count >= 1", s.System)
		}
	}
	return nil
}

// CheckingEnabled reports whether Tolerance allows violation checking at all.
func (s TimeSettings) CheckingEnabled() bool {
	return s.Tolerance >= 0
}

// GameSettings bundles the board parameters passed to the engines every game.
type GameSettings struct {
	BoardSize int
	Komi      float64
	Time      TimeSettings
}

func (s GameSettings) Clone() GameSettings { return s }

func (s GameSettings) Validate() error {
	if s.BoardSize < 1 {
		return fmt.Errorf("bad board size %d", s.BoardSize)
	}
	return s.Time.Validate()
}
