// Command heaptrace-demo exercises the allocation tracker with the four
// canonical misuse scenarios: a correct allocate/free pair, a deliberate
// leak, a double free, and a free of a stack address.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/heaptrace/heaptrace/internal/cli"
	"github.com/heaptrace/heaptrace/internal/config"
	"github.com/heaptrace/heaptrace/internal/heap"
	"github.com/heaptrace/heaptrace/internal/tracker"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		configPath  = flag.String("config", "", "path to YAML configuration file")
		backend     = flag.String("backend", "", "allocator backend: system, mmap, arena (overrides config)")
		linger      = flag.Duration("linger", 0, "keep the process alive after the demo (for live-dump watching)")
		verbose     = flag.Bool("verbose", false, "verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Heaptrace allocation-tracking demo.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # run the demo with the system allocator\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --backend mmap           # back allocations with anonymous mmap\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config heaptrace.yaml  # full run configuration from file\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("heaptrace-demo", *jsonOutput)
		os.Exit(0)
	}

	log := cli.NewLogger(*verbose)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			cli.ExitWithError("%v", err)
		}

		cfg = loaded
	}

	if *backend != "" {
		cfg.Allocator.Backend = *backend
		if err := cfg.Validate(); err != nil {
			cli.ExitWithError("%v", err)
		}
	}

	alloc, err := newAllocator(cfg)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	log.Info("using %s allocator backend", cfg.Allocator.Backend)

	var trackerOpts []tracker.Option
	if cfg.Warn.Path != "" {
		warnFile, err := os.OpenFile(cfg.Warn.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			cli.ExitWithError("open warn file: %v", err)
		}
		defer warnFile.Close()

		trackerOpts = append(trackerOpts, tracker.WithWarnWriter(warnFile))
		log.Info("diagnostics routed to %s", cfg.Warn.Path)
	}

	tr := tracker.New(alloc, trackerOpts...)

	if cfg.Watch.Enabled {
		watcher, err := tr.Watch(cfg.Watch.ControlFile, os.Stdout)
		if err != nil {
			cli.ExitWithError("start watcher: %v", err)
		}
		defer watcher.Close()

		log.Info("live dumps on writes to %s", cfg.Watch.ControlFile)
	}

	fmt.Println("=== heaptrace demo start ===")
	runScenario(tr)
	fmt.Println("\n=== heaptrace demo end ===")

	if *linger > 0 {
		log.Info("lingering for %s", *linger)
		time.Sleep(*linger)
	}

	if cfg.Report.Path != "" {
		if err := tr.BuildReport().WriteFile(cfg.Report.Path, cfg.Report.JSON); err != nil {
			cli.ExitWithError("write report: %v", err)
		}

		log.Info("report written to %s", cfg.Report.Path)
	}

	tr.Finalize()
}

// newAllocator builds the configured allocator backend.
func newAllocator(cfg *config.Config) (heap.Allocator, error) {
	switch cfg.Allocator.Backend {
	case "mmap":
		return heap.NewMmapAllocator()
	case "arena":
		return heap.NewArenaAllocator(uintptr(cfg.Allocator.ArenaSize))
	default:
		return heap.NewSystemAllocator(), nil
	}
}

// runScenario drives the tracker through one valid pair, a leak, a double
// free, and an invalid free.
func runScenario(tr *tracker.Tracker) {
	// 1) Proper allocate + free.
	arr, err := tr.Alloc(5*unsafe.Sizeof(int32(0)), tracker.Here())
	if err == nil {
		ints := unsafe.Slice((*int32)(arr), 5)
		for i := range ints {
			ints[i] = int32(i * 10)
		}

		tr.Free(arr, tracker.Here())
	}

	// 2) Intentional leak.
	leaked, err := tr.Alloc(20, tracker.Here())
	if err == nil {
		msg := "I am a leak!"
		copy(unsafe.Slice((*byte)(leaked), 20), msg)
		// never freed
	}

	// 3) Double free.
	nums, err := tr.Alloc(3*unsafe.Sizeof(float32(0)), tracker.Here())
	if err == nil {
		floats := unsafe.Slice((*float32)(nums), 3)
		floats[0], floats[1], floats[2] = 1.1, 2.2, 3.3

		tr.Free(nums, tracker.Here())
		tr.Free(nums, tracker.Here()) // second free triggers a warning
	}

	// 4) Invalid free of a stack address.
	stackVar := 42
	tr.Free(unsafe.Pointer(&stackVar), tracker.Here())
}
