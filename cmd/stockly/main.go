// Command stockly signs in to a Stockly server and issues authenticated
// requests with the stored session.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
)

const (
	appName = "stockly"
	Version = "0.1.0"
)

// BuildTime is set with -ldflags at release time.
var BuildTime = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cmd, ref := rootCmd()
	err := cmd.ExecuteContext(ctx)
	err = errors.Join(err, ref.Close())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
