package signals

import (
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"
)

var onlyOneSignalHandler = make(chan struct{})

// StopChannel returns a channel that is closed on SIGINT or SIGTERM.
// A second signal terminates the program immediately.
func StopChannel() <-chan struct{} {
	close(onlyOneSignalHandler) // panics when called twice

	stopCh := make(chan struct{})
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		klog.Infof("Received signal %q, shutting down.", sig)
		close(stopCh)
		sig = <-c
		klog.Infof("Received second signal %q, exiting.", sig)
		os.Exit(1)
	}()

	return stopCh
}
