package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"phototagger/logging"
	"phototagger/signalhandler"
	"phototagger/utils"
)

func main() {
	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	ctx, stop := signalhandler.SetupHandler(context.Background())

	cmd := newRootCommand()
	cmd.SetArgs(utils.NormalizeArgs(os.Args[1:]))
	err := cmd.ExecuteContext(ctx)

	stop()
	logging.CloseLogger()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
