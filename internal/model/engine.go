package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// EngineSpec describes how to launch and talk to one engine. See spec §3.
type EngineSpec struct {
	Name    string
	CmdLine []string
	WorkDir string

	Quiet     bool
	LogStdErr bool

	GTPInitialTimeout time.Duration

	PreMatch  []string
	PostMatch []string
	PreGame   []string
	PostGame  []string
}

func (e EngineSpec) Clone() EngineSpec {
	e.CmdLine = slices.Clone(e.CmdLine)
	e.PreMatch = slices.Clone(e.PreMatch)
	e.PostMatch = slices.Clone(e.PostMatch)
	e.PreGame = slices.Clone(e.PreGame)
	e.PostGame = slices.Clone(e.PostGame)
	return e
}

func (e EngineSpec) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("engine has no name")
	}
	if len(e.CmdLine) == 0 {
		return fmt.Errorf("engine %q has empty command line", e.Name)
	}
	return nil
}

// TemplateParams supplies the values substitutable into an EngineSpec's
// command line and custom commands, per spec §3.
type TemplateParams struct {
	Name        string
	MatchDir    string
	BoardSize   int
	Komi        float64
	MainTime    float64
	PeriodTime  float64
	PeriodCount int
	TimeSystem  string
}

// ExpandTemplate substitutes {name}, {matchdir}, {boardsize}, {komi},
// {maintime}, {periodtime}, {periodcount} and {timesys}; "{{" and "}}" are
// literal braces. Unknown placeholders are left untouched.
func ExpandTemplate(s string, p TemplateParams) string {
	fields := map[string]string{
		"name":        p.Name,
		"matchdir":    p.MatchDir,
		"boardsize":   fmt.Sprintf("%d", p.BoardSize),
		"komi":        trimFloat(p.Komi),
		"maintime":    trimFloat(p.MainTime),
		"periodtime":  trimFloat(p.PeriodTime),
		"periodcount": fmt.Sprintf("%d", p.PeriodCount),
		"timesys":     p.TimeSystem,
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			name := s[i+1 : i+end]
			if v, ok := fields[name]; ok {
				b.WriteString(v)
				i += end
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// ExpandCmdLine expands every argument of a command line template.
func ExpandCmdLine(args []string, p TemplateParams) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = ExpandTemplate(a, p)
	}
	return out
}
