package idgen

import "github.com/dustinkirkland/golang-petname"

// RunName returns a human-readable, adjective-noun identifier for a match
// run, used as the default match name in .log/.mvtimes/SGF filenames when
// the config doesn't set one explicitly.
func RunName() string {
	return petname.Generate(2, "-")
}
