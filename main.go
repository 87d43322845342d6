// telfs serves one directory to many line-oriented TCP clients, with
// every path confined to that directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"telfs/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "telfs: %v\n", err)
		os.Exit(1)
	}
}
