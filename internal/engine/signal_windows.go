//go:build windows

package engine

import "os"

// terminateSignal: Windows process handles don't support a graceful
// SIGTERM-equivalent via os.Process.Signal, so the "polite" signal and the
// force-kill are the same operation; the grace period in killLocked still
// applies to the Wait, not the signal itself.
func terminateSignal() os.Signal { return os.Kill }
