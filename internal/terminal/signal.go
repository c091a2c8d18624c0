package terminal

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

func signalNotifyWinch(c chan os.Signal) {
	signal.Notify(c, unix.SIGWINCH)
}

func signalStopWinch(c chan os.Signal) {
	signal.Stop(c)
}
