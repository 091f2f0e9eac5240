//go:build windows

package main

import (
	"fmt"
	"os"
	"time"
)

// terminateProcessGroup kills the lead process by pid. Windows has no
// process-group signal semantics; detach mode is a Unix-first feature.
func terminateProcessGroup(pgid int, polite time.Duration) error {
	p, err := os.FindProcess(pgid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pgid, err)
	}
	return p.Kill()
}
