//go:build windows

package main

import (
	"os"

	"github.com/apimgr/ecogarden/src/utils"
)

var platformSignals []os.Signal

// handlePlatformSignal reports false: Windows only delivers terminating
// signals
func handlePlatformSignal(sig os.Signal, appLogger *utils.Logger) bool {
	return false
}
