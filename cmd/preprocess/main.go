// Package main provides the entry point for the preprocessing pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/listenupapp/moments-pipeline/internal/di"
	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Create DI container
	injector := di.NewContainer(args)

	p, err := di.Bootstrap(injector)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Failed to bootstrap pipeline: %v\n", err)
		shutdown(injector, nil)
		return 1
	}

	log := do.MustInvoke[*logger.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)
	if report != nil {
		printSummary(os.Stdout, report)
	}
	shutdown(injector, log)

	if err != nil {
		log.WithError(err).Error("Pipeline failed", "code", domainerrors.CodeOf(err))
		return 1
	}
	return 0
}

// shutdown closes every service that holds resources. The DI container
// handles shutdown order.
func shutdown(injector *do.RootScope, log *logger.Logger) {
	report := injector.Shutdown()
	if report == nil || report.Succeed {
		return
	}
	if log != nil {
		log.Error("Shutdown error", "error", report)
	} else {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", report)
	}
}

func printSummary(w io.Writer, r *domain.RunReport) {
	fmt.Fprintf(w, "Run %s (%s %s)\n", r.RunID, r.Pipeline, r.Version)
	fmt.Fprintf(w, "  passages:        %d (%d valid)\n", r.Passages.Total, r.Passages.Valid)
	fmt.Fprintf(w, "  users:           %d\n", r.Users.Total)
	fmt.Fprintf(w, "  interpretations: %d (%d valid, %d invalid, %.2f%%)\n",
		r.Interpretations.Total, r.Interpretations.Valid, r.Interpretations.Invalid, r.Interpretations.ValidityRate)
	fmt.Fprintf(w, "  issues:          pii=%d profanity=%d spam=%d\n",
		r.IssuesDetected.PII, r.IssuesDetected.Profanity, r.IssuesDetected.Spam)
	fmt.Fprintf(w, "  anomalies:       %d\n", r.AnomaliesDetected)
	fmt.Fprintf(w, "  skipped:         %d\n", r.Skipped.Total())

	codes := make([]string, 0, len(r.Skipped.ByCode))
	for code := range r.Skipped.ByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "    %-14s %d\n", strings.ToLower(code)+":", r.Skipped.ByCode[code])
	}

	names := make([]string, 0, len(r.Outputs))
	for name := range r.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := "ok"
		if !r.Outputs[name] {
			status = "failed"
		}
		fmt.Fprintf(w, "  output %-8s %s\n", name+":", status)
	}
}
