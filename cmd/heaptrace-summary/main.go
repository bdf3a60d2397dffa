// Command heaptrace-summary digests a JSON report produced by the tracker
// (report.json written via the report file path with json enabled) and prints
// a compact human-readable summary.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/heaptrace/heaptrace/internal/cli"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		showLeaks   = flag.Bool("leaks", false, "list individual leaked blocks")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <report.json>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Summarize a heaptrace JSON report.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("heaptrace-summary", *jsonOutput)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		cli.ExitWithError("read report: %v", err)
	}

	if !gjson.ValidBytes(data) {
		cli.ExitWithError("%s is not valid JSON", flag.Arg(0))
	}

	report := gjson.ParseBytes(data)

	allocCalls := report.Get("alloc_calls").Uint()
	freeCalls := report.Get("free_calls").Uint()
	leakedBlocks := report.Get("leaked_blocks").Uint()
	leakedBytes := report.Get("leaked_bytes").Uint()
	doubleFrees := report.Get("double_frees").Uint()
	invalidFrees := report.Get("invalid_frees").Uint()

	fmt.Printf("calls: %d alloc / %d free\n", allocCalls, freeCalls)
	fmt.Printf("bytes: %d allocated / %d freed\n",
		report.Get("bytes_allocated").Uint(), report.Get("bytes_freed").Uint())

	if doubleFrees == 0 && invalidFrees == 0 && leakedBlocks == 0 {
		fmt.Println("clean run: no leaks, no misuse")
		return
	}

	if doubleFrees > 0 {
		fmt.Printf("double frees: %d\n", doubleFrees)
	}

	if invalidFrees > 0 {
		fmt.Printf("invalid frees: %d\n", invalidFrees)
	}

	if leakedBlocks > 0 {
		fmt.Printf("leaks: %d block(s), %d byte(s)\n", leakedBlocks, leakedBytes)

		if *showLeaks {
			report.Get("leaks").ForEach(func(_, leak gjson.Result) bool {
				fmt.Printf("  %s: %d bytes (allocated at %s)\n",
					leak.Get("identity").String(),
					leak.Get("size").Uint(),
					leak.Get("origin").String())

				return true
			})
		}
	}

	os.Exit(1)
}
