// Package main is the entry point for the endpoint health check command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cenkalti/backoff/v5"

	"gitlab.com/gitlab-org/correlated-http/client"
	"gitlab.com/gitlab-org/correlated-http/internal/config"
	"gitlab.com/gitlab-org/correlated-http/internal/logger"
)

var (
	// Version is the current version of correlation-check
	Version = "(unknown version)" // Set at build time in the Makefile
	// BuildTime signifies the time the binary was build
	BuildTime = "19700101.000000" // Set at build time in the Makefile
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config-dir", ".", "directory containing config.yml")
	wait := flag.Duration("wait", 0, "total time to keep retrying until the endpoint is healthy")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("correlation-check %s-%s\n", Version, BuildTime)
		return 0
	}

	ctx := context.Background()

	cfg, err := config.NewFromDir(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config, exiting: %v\n", err)
		return 1
	}

	log, logCloser, err := logger.ConfigureLogger(cfg)
	if err == nil && logCloser != nil {
		defer func() {
			if err := logCloser.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		}()
	}
	slog.SetDefault(log)

	apiClient, err := cfg.Client()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		return 1
	}

	check := func() (*client.HealthResponse, error) {
		response, err := apiClient.CheckHealth(ctx)
		if err != nil {
			return nil, err
		}
		if !response.Healthy {
			return nil, errors.New("endpoint reports unhealthy")
		}
		return response, nil
	}

	var response *client.HealthResponse
	if *wait > 0 {
		response, err = backoff.Retry(ctx, check,
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxElapsedTime(*wait),
		)
	} else {
		response, err = check()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, checkFailureMessage(err))
		return 1
	}

	fmt.Printf("API version %s, server version %s: OK\n", response.APIVersion, response.ServerVersion)
	return 0
}

// checkFailureMessage renders the failure for operators. Errors shaped from a
// response already carry the correlation id suffix; transport-level failures
// never received a response and stay as plain messages.
func checkFailureMessage(err error) string {
	var correlatedErr *client.CorrelatedError
	if errors.As(err, &correlatedErr) {
		return correlatedErr.Error()
	}

	return client.FormatErrorWithCorrelation(err.Error(), "")
}
