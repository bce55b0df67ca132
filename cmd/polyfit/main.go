// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command polyfit fits polynomials to sample data with a genetic algorithm.
//
// Usage:
//
//	polyfit generate points.txt --coeffs 1,3,-1,2 --points 500
//	polyfit solve points.txt --backend parallel --metrics-addr :9090
//	polyfit cluster points.txt --workers 4
//	polyfit worker points.txt --rank 0 --size 4 --nats-url nats://127.0.0.1:4222
//	polyfit history --limit 10
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("run failed", slog.String("error", err.Error()))
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
	}
	if terr := a.teardown(); terr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", terr)
	}
	if err != nil {
		return 1
	}
	return 0
}
