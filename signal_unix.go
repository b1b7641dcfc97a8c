//go:build unix

package av

import (
	"os/signal"
	"syscall"
)

func ignoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
