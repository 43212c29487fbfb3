//go:build windows

package main

import (
	"os"
)

// Windows only delivers os.Interrupt (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
