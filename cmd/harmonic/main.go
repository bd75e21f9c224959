// Command harmonic scans candle series for harmonic XABCD patterns.
package main

import (
	"context"
	"fmt"
	"os"

	"harmonic-trader/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
