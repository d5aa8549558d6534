// Command rawfetch fetches a URL and prints the status line, headers and body.
//
//	rawfetch [-config file.yaml] [-X METHOD] [-H 'Name: value']... [-insecure] [-timeout 30s] [-v] URL
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/WhileEndless/go-rawfetch"
	"github.com/WhileEndless/go-rawfetch/pkg/config"
	"github.com/WhileEndless/go-rawfetch/pkg/decoder"
)

// headerFlags collects repeated -H values.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for name, value := range h {
		parts = append(parts, name+": "+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(raw string) error {
	name, value, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q must look like 'Name: value'", raw)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	headers := headerFlags{}
	configPath := flag.String("config", "", "YAML file with client settings")
	method := flag.String("X", "GET", "request method")
	insecure := flag.Bool("insecure", false, "skip certificate verification")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline, redirects included")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Var(headers, "H", "request header, repeatable")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rawfetch [-config file.yaml] [-X METHOD] [-H 'Name: value']... [-insecure] [-timeout 30s] [-v] URL")
		return 2
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	opts := rawfetch.DefaultOptions()
	requestHeaders := map[string]string{}
	if *configPath != "" {
		file, err := config.Load(*configPath)
		if err != nil {
			logger.Error("loading config", zap.String("path", *configPath), zap.Error(err))
			return 1
		}
		if opts, err = file.Options(); err != nil {
			logger.Error("applying config", zap.String("path", *configPath), zap.Error(err))
			return 1
		}
		for name, value := range file.Headers {
			requestHeaders[name] = value
		}
	}
	for name, value := range headers {
		requestHeaders[name] = value
	}
	if *insecure {
		opts.InsecureTLS = true
	}
	opts.Logger = logger

	client := rawfetch.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Do(ctx, rawfetch.Request{
		URL:     flag.Arg(0),
		Method:  *method,
		Headers: requestHeaders,
	})
	if err != nil {
		logger.Error("request failed",
			zap.String("url", flag.Arg(0)),
			zap.String("type", string(rawfetch.GetErrorType(err))),
			zap.Error(err),
		)
		return 1
	}

	printResponse(resp)
	logger.Debug("done",
		zap.String("url", resp.URL),
		zap.Int("redirects", resp.Redirects),
		zap.Bool("reused", resp.ConnectionReused),
		zap.Duration("total", resp.Timings.TotalTime),
	)
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func printResponse(resp *rawfetch.Response) {
	fmt.Println(resp.Status.String())

	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %s\n", name, resp.Headers[name])
	}
	fmt.Println()

	if resp.Body.Kind == decoder.KindJSON {
		pretty, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(resp.Body.Value, "", "  ")
		if err == nil {
			fmt.Println(string(pretty))
			return
		}
	}
	fmt.Println(resp.Body.String())
}
