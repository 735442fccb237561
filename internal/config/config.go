// Package config implements the configuration-file parser spec §6 names as
// an external collaborator: it decodes a TOML file into a validated
// model.MatchPlan, following the teacher's enginemap.EngineOptions
// decode-then-convert shape.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/idgen"
)

// EngineConfig is the TOML shape of one EngineSpec.
type EngineConfig struct {
	Name      string   `toml:"name"`
	Cmd       []string `toml:"cmd"`
	WorkDir   string   `toml:"workdir"`
	Quiet     bool     `toml:"quiet"`
	LogStderr bool     `toml:"log-stderr"`

	GTPInitTimeout time.Duration `toml:"gtp-init-timeout"`

	PreMatch  []string `toml:"pre-match"`
	PostMatch []string `toml:"post-match"`
	PreGame   []string `toml:"pre-game"`
	PostGame  []string `toml:"post-game"`
}

func (c EngineConfig) toSpec() model.EngineSpec {
	return model.EngineSpec{
		Name:              c.Name,
		CmdLine:           c.Cmd,
		WorkDir:           c.WorkDir,
		Quiet:             c.Quiet,
		LogStdErr:         c.LogStderr,
		GTPInitialTimeout: c.GTPInitTimeout,
		PreMatch:          c.PreMatch,
		PostMatch:         c.PostMatch,
		PreGame:           c.PreGame,
		PostGame:          c.PostGame,
	}
}

// TimeConfig is the TOML shape of one TimeSettings.
type TimeConfig struct {
	System      string  `toml:"system"` // "none", "absolute", "canadian", "japanese"
	MainTime    float64 `toml:"main-time"`
	PeriodTime  float64 `toml:"period-time"`
	PeriodCount int     `toml:"period-count"`
	Tolerance   float64 `toml:"tolerance"`
}

func (c TimeConfig) toSettings() (model.TimeSettings, error) {
	var sys model.TimeSystem
	switch c.System {
	case "", "none":
		sys = model.TimeSystemNone
	case "absolute":
		sys = model.TimeSystemAbsolute
	case "canadian":
		sys = model.TimeSystemCanadian
	case "japanese":
		sys = model.TimeSystemJapanese
	default:
		return model.TimeSettings{}, fmt.Errorf("unknown time system %q", c.System)
	}
	return model.TimeSettings{
		System:      sys,
		MainTime:    c.MainTime,
		PeriodTime:  c.PeriodTime,
		PeriodCount: c.PeriodCount,
		Tolerance:   c.Tolerance,
	}, nil
}

// File is the full TOML match configuration.
type File struct {
	EngineA EngineConfig  `toml:"engine-a"`
	EngineB EngineConfig  `toml:"engine-b"`
	Scorer  *EngineConfig `toml:"scorer"`

	BoardSize int        `toml:"board-size"`
	Komi      float64    `toml:"komi"`
	Time      TimeConfig `toml:"time"`

	NumGames int `toml:"num-games"`

	MatchWait time.Duration `toml:"match-wait"`
	GameWait  time.Duration `toml:"game-wait"`
	MoveWait  time.Duration `toml:"move-wait"`

	GTPTimeout       time.Duration `toml:"gtp-timeout"`
	GenmoveExtra     time.Duration `toml:"genmove-extra"`
	GenmoveUntimedTO time.Duration `toml:"genmove-untimed-timeout"`
	ScorerTimeout    time.Duration `toml:"scorer-timeout"`

	ConsecutivePasses int  `toml:"consecutive-passes"`
	EnforceTime       bool `toml:"enforce-time"`
	DisableSGF        bool `toml:"disable-sgf"`
	LogStderr         bool `toml:"log-stderr"`

	MatchName string `toml:"match-name"`
}

// Load reads and decodes a TOML config file.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := toml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return f, nil
}

// ToPlan converts a decoded File into a validated model.MatchPlan rooted at
// matchDir, the one piece of plan state not carried in the TOML file itself
// (it comes from the session/checkpoint manager, spec §6).
func (f File) ToPlan(matchDir string) (model.MatchPlan, error) {
	timeSettings, err := f.Time.toSettings()
	if err != nil {
		return model.MatchPlan{}, fmt.Errorf("config: %w", err)
	}

	matchName := f.MatchName
	if matchName == "" {
		matchName = idgen.RunName()
	}

	plan := model.MatchPlan{
		EngineA: f.EngineA.toSpec(),
		EngineB: f.EngineB.toSpec(),
		Settings: model.GameSettings{
			BoardSize: f.BoardSize,
			Komi:      f.Komi,
			Time:      timeSettings,
		},
		NumGames: f.NumGames,
		Waits: model.Waits{
			Match: f.MatchWait,
			Game:  f.GameWait,
			Move:  f.MoveWait,
		},
		GTPTimeouts: model.GTPTimeouts{
			GTPTimeout:       f.GTPTimeout,
			GenmoveExtra:     f.GenmoveExtra,
			GenmoveUntimedTO: f.GenmoveUntimedTO,
			ScorerTO:         f.ScorerTimeout,
		},
		ConsecutivePassesToEnd: f.ConsecutivePasses,
		EnforceTime:            f.EnforceTime,
		DisableSGF:             f.DisableSGF,
		MatchDir:               matchDir,
		MatchName:              matchName,
	}
	if f.Scorer != nil {
		s := f.Scorer.toSpec()
		plan.Scorer = &s
	}

	plan.FillDefaults()

	// GTPTimeouts.FillDefaults just derived the handshake default
	// (max(15s, gtp-timeout)); route it into every engine that didn't set
	// gtp-init-timeout explicitly, since EngineSpec.GTPInitialTimeout, not
	// GTPTimeouts.GTPInitialTimeout, is what the Supervisor actually reads
	// on startup.
	applyInitTimeoutDefault(&plan.EngineA, plan.GTPTimeouts.GTPInitialTimeout)
	applyInitTimeoutDefault(&plan.EngineB, plan.GTPTimeouts.GTPInitialTimeout)
	if plan.Scorer != nil {
		applyInitTimeoutDefault(plan.Scorer, plan.GTPTimeouts.GTPInitialTimeout)
	}

	if err := plan.Validate(); err != nil {
		return model.MatchPlan{}, fmt.Errorf("config: %w", err)
	}
	return plan, nil
}

func applyInitTimeoutDefault(spec *model.EngineSpec, def time.Duration) {
	if spec.GTPInitialTimeout == 0 {
		spec.GTPInitialTimeout = def
	}
}

// LogStderrEnabled reports whether any engine in the plan wants stderr
// captured, the switch the Result emitter uses to decide whether to create
// the stderr/ directory at all.
func (f File) LogStderrEnabled() bool {
	if f.EngineA.LogStderr || f.EngineB.LogStderr {
		return true
	}
	return f.Scorer != nil && f.Scorer.LogStderr
}
