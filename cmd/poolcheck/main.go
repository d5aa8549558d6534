// Command poolcheck sends two requests to the same URL and reports whether the
// second one reused the pooled connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/WhileEndless/go-rawfetch"
)

func main() {
	insecure := flag.Bool("insecure", false, "skip certificate verification")
	verbose := flag.Bool("v", false, "log connection events")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: poolcheck [-insecure] [-v] URL")
		os.Exit(2)
	}
	url := flag.Arg(0)

	opts := rawfetch.DefaultOptions()
	opts.InsecureTLS = *insecure
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync() //nolint:errcheck
		opts.Logger = logger
	}

	client := rawfetch.NewClient(opts)
	defer client.Close()
	ctx := context.Background()

	fmt.Println("=== Connection Pooling Check ===")

	var reused bool
	for i := 1; i <= 2; i++ {
		fmt.Printf("\nMaking Request %d...\n", i)
		resp, err := client.Get(ctx, url, nil)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Request %d:\n", i)
		fmt.Printf("  Status: %s\n", resp.Status)
		fmt.Printf("  Connection Reused: %v\n", resp.ConnectionReused)
		fmt.Printf("  Body Size: %d bytes\n", len(resp.Body.Raw))
		fmt.Printf("  Timings: %s\n", resp.Timings.String())
		reused = resp.ConnectionReused

		time.Sleep(100 * time.Millisecond)
	}

	if reused {
		fmt.Println("\nSUCCESS: the second request reused the connection")
		return
	}
	fmt.Println("\nFAILURE: the second request opened a new connection")
	os.Exit(1)
}
