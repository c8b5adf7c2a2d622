package util

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Go runs fn on a detached goroutine. Panics are recovered and logged so a
// background task can never take the process down.
func Go(logger *slog.Logger, task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("background task panicked", "task", task, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				}
			}
		}()
		fn()
	}()
}
