//go:build !windows

package main

import (
	"os"
	"syscall"

	"github.com/apimgr/ecogarden/src/utils"
)

var platformSignals = []os.Signal{
	syscall.SIGUSR1, // Rotate log files
	syscall.SIGUSR2, // Toggle debug mode
	syscall.SIGHUP,  // Ignored, config reloads through the file watcher
}

// handlePlatformSignal handles non-terminating signals and reports
// whether sig was one of them
func handlePlatformSignal(sig os.Signal, appLogger *utils.Logger) bool {
	switch sig {
	case syscall.SIGUSR1:
		appLogger.Info("Received SIGUSR1, rotating log files")
		if err := appLogger.RotateLogs(); err != nil {
			appLogger.Error("Failed to rotate logs: %v", err)
		}
		return true

	case syscall.SIGUSR2:
		on, err := toggleDebug(appLogger)
		if err != nil {
			appLogger.Error("Failed to toggle debug mode: %v", err)
			return true
		}
		if on {
			appLogger.Info("Received SIGUSR2, debug mode ON")
		} else {
			appLogger.Info("Received SIGUSR2, debug mode OFF")
		}
		return true

	case syscall.SIGHUP:
		appLogger.Info("Received SIGHUP, ignored: configuration reloads automatically")
		return true
	}
	return false
}
