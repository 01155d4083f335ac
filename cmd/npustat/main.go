package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if !debugEnabled(root) {
			fmt.Fprintln(os.Stderr, `Run with "--debug" for details and report issues at https://github.com/wmc1992/npustat`)
		}
		stop()
		os.Exit(1)
	}
}
