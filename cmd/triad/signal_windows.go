//go:build windows

package main

import "os"

// shutdownSignals lists the OS signals that abort a running session.
// On Windows, only os.Interrupt is supported.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
