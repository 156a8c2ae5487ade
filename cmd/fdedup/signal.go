package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errInterrupted is the cancellation cause when a signal arrives.
var errInterrupted = errors.New("interrupted by signal")

// setupSignalHandler returns a context that is cancelled when SIGINT or
// SIGTERM is received, and a stop function that releases the handler.
func setupSignalHandler(parent context.Context, stderr io.Writer) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			fmt.Fprintf(stderr, "\nReceived signal: %v\n", sig)
			cancel(fmt.Errorf("%w: %v", errInterrupted, sig))
		case <-done:
		}
		signal.Stop(sigChan)
	}()

	return ctx, func() {
		close(done)
		cancel(nil)
	}
}
