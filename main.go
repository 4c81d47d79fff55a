// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spectrogram/cmd"
	"spectrogram/pkg/build"
)

// main wires signals to a context and hands over to the command line. The
// live command runs until the user quits, the source ends, or a signal
// arrives; capture is stopped and transports are closed before exit.
func main() {
	if err := build.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildFlags().Name, err)
		stop()
		os.Exit(1)
	}
}
