package checkpoint

import "github.com/dumbarb/dumbarb/internal/util/timeutil"

// CompletedGame records that game Seq of the match at MatchDir produced a
// complete .log line, the durable state backing -c/--continue (spec §6's
// "session/checkpoint manager" collaborator).
type CompletedGame struct {
	MatchDir  string `gorm:"primaryKey"`
	Seq       int    `gorm:"primaryKey"`
	UpdatedAt timeutil.UTCTime
}

var models = []any{
	&CompletedGame{},
}
