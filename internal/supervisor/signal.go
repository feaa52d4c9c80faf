package supervisor

import (
	"os"
	"syscall"
)

// processTermSignal returns the signal used to ask a worker process to
// stop cleanly before its grace window expires and it is killed outright.
func processTermSignal() os.Signal {
	return syscall.SIGTERM
}
