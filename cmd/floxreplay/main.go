// Package main provides floxreplay, a thin CLI wrapper around
// internal/backtest.Runner and internal/segment's offline operations:
// replay a ".floxlog" dataset through the simulated executor, or inspect/
// merge/export it, without embedding floxcore as a library (spec §6:
// "exit codes / CLI out of scope — a thin wrapper layer owns them").
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rishav/floxcore/internal/backtest"
	"github.com/rishav/floxcore/internal/clock"
	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/executor"
	"github.com/rishav/floxcore/internal/feed"
	"github.com/rishav/floxcore/internal/registry"
	"github.com/rishav/floxcore/internal/segment"
	"github.com/rishav/floxcore/internal/types"
)

// replayStrategy is the CLI's default strategy: it observes the replay but
// emits no signals. A real strategy is a library concern; the CLI only
// needs to drive the executor and report what happened.
type replayStrategy struct {
	feed.NoopMarketDataSubscriber
}

func (replayStrategy) Start() {}
func (replayStrategy) Stop()  {}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "merge":
		mergeCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: floxreplay <run|inspect|merge|export> [flags]")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", "", "segment directory to replay")
	registryPath := fs.String("registry", "", "optional SREG symbol registry file")
	tickSize := fs.Float64("tick-size", 0.01, "default tick size for symbols absent from the registry")
	fs.Parse(args)

	if *dir == "" {
		log.Fatal("floxreplay run: -dir is required")
	}

	dr, err := segment.OpenDir(*dir)
	if err != nil {
		log.Fatalf("floxreplay run: open %s: %v", *dir, err)
	}

	var reg *registry.Registry
	if *registryPath != "" {
		reg, err = registry.LoadFile(*registryPath)
		if err != nil {
			log.Fatalf("floxreplay run: load registry %s: %v", *registryPath, err)
		}
	}

	clk := clock.NewSimulated(0)
	exec := executor.New(clk, types.NoopExecutionListener{})
	runner := backtest.NewRunner(backtest.RunnerConfig{
		Clock:           clk,
		Executor:        exec,
		Strategy:        replayStrategy{},
		Registry:        reg,
		DefaultTickSize: decimal.Price(int64(*tickSize * float64(decimal.Scale))),
	})

	result, err := runner.Run(dr)
	if err != nil {
		log.Fatalf("floxreplay run: %v", err)
	}

	fmt.Printf("events=%d trades=%d book_updates=%d fills=%d realized_pnl=%.8f\n",
		result.EventsProcessed, result.TradeCount, result.BookUpdateCount,
		len(result.Fills), runner.Ledger().TotalRealizedPnL().Float64())
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dir := fs.String("dir", "", "segment directory to inspect")
	fs.Parse(args)

	if *dir == "" {
		log.Fatal("floxreplay inspect: -dir is required")
	}

	summary, err := segment.InspectDir(*dir)
	if err != nil {
		log.Fatalf("floxreplay inspect: %v", err)
	}
	fmt.Printf("segments=%d events=%d first_ns=%d last_ns=%d\n",
		summary.SegmentCount, summary.EventCount, summary.FirstEventNs, summary.LastEventNs)
	for _, s := range summary.Segments {
		fmt.Println(" ", s)
	}
}

func mergeCmd(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	src := fs.String("src", "", "source segment directory")
	dst := fs.String("dst", "", "destination segment directory")
	fs.Parse(args)

	if *src == "" || *dst == "" {
		log.Fatal("floxreplay merge: -src and -dst are required")
	}

	if err := segment.Merge(*src, *dst, segment.DefaultWriterConfig(*dst)); err != nil {
		log.Fatalf("floxreplay merge: %v", err)
	}
	fmt.Printf("merged %s into %s\n", *src, *dst)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	src := fs.String("src", "", "source segment directory")
	out := fs.String("out", "", "output file path")
	format := fs.String("format", "csv", "csv|json|jsonlines")
	fs.Parse(args)

	if *src == "" || *out == "" {
		log.Fatal("floxreplay export: -src and -out are required")
	}

	dr, err := segment.OpenDir(*src)
	if err != nil {
		log.Fatalf("floxreplay export: open %s: %v", *src, err)
	}

	var f segment.ExportFormat
	switch format_ := *format; format_ {
	case "csv":
		f = segment.ExportCSV
	case "json":
		f = segment.ExportJSON
	case "jsonlines":
		f = segment.ExportJSONLines
	default:
		log.Fatalf("floxreplay export: unknown format %q", format_)
	}

	if err := segment.Export(dr, segment.DefaultForEachOpts(), *out, f); err != nil {
		log.Fatalf("floxreplay export: %v", err)
	}
	fmt.Printf("exported %s to %s (%s)\n", *src, *out, *format)
}
