package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// LeakRecord is one leaked block in a report.
type LeakRecord struct {
	Identity string `json:"identity"`
	Size     uint64 `json:"size"`
	Origin   string `json:"origin"`
}

// Report is the end-of-run summary. Field labels and their order in the text
// rendering are part of the observable contract.
type Report struct {
	AllocCalls     uint64       `json:"alloc_calls"`
	FreeCalls      uint64       `json:"free_calls"`
	BytesAllocated uint64       `json:"bytes_allocated"`
	BytesFreed     uint64       `json:"bytes_freed"`
	DoubleFrees    uint64       `json:"double_frees"`
	InvalidFrees   uint64       `json:"invalid_frees"`
	LeakedBlocks   uint64       `json:"leaked_blocks"`
	LeakedBytes    uint64       `json:"leaked_bytes"`
	Leaks          []LeakRecord `json:"leaks"`
}

// BuildReport captures the tracker's current state as a Report. Leaks are
// listed most recently allocated first.
func (t *Tracker) BuildReport() *Report {
	r := &Report{
		AllocCalls:     t.stats.AllocCalls,
		FreeCalls:      t.stats.FreeCalls,
		BytesAllocated: t.stats.BytesAllocated,
		BytesFreed:     t.stats.BytesFreed,
		DoubleFrees:    t.stats.DoubleFrees,
		InvalidFrees:   t.stats.InvalidFrees,
	}

	for _, rec := range t.ledger.snapshot() {
		r.Leaks = append(r.Leaks, LeakRecord{
			Identity: fmt.Sprintf("%p", rec.Identity),
			Size:     uint64(rec.Size),
			Origin:   rec.Origin.String(),
		})
		r.LeakedBlocks++
		r.LeakedBytes += uint64(rec.Size)
	}

	return r
}

// DumpLive writes a snapshot report without consuming the shutdown latch.
// Intended for on-demand inspection of a long-running session.
func (t *Tracker) DumpLive(w io.Writer) {
	t.BuildReport().WriteText(w)
}

// WriteText renders the report in the fixed field order.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "\n===== Memory Leak Report =====\n")
	fmt.Fprintf(w, "Total allocation calls:  %d\n", r.AllocCalls)
	fmt.Fprintf(w, "Total free calls:        %d\n", r.FreeCalls)
	fmt.Fprintf(w, "Total bytes allocated:   %d\n", r.BytesAllocated)
	fmt.Fprintf(w, "Total bytes freed:       %d\n", r.BytesFreed)
	fmt.Fprintf(w, "Double-free attempts:    %d\n", r.DoubleFrees)
	fmt.Fprintf(w, "Invalid free attempts:   %d\n", r.InvalidFrees)

	if len(r.Leaks) == 0 {
		fmt.Fprintf(w, "No leaks detected!\n")
	} else {
		fmt.Fprintf(w, "\nLeaked blocks:\n")

		for _, leak := range r.Leaks {
			fmt.Fprintf(w, "  Leak at %s: %d bytes (allocated at %s)\n",
				leak.Identity, leak.Size, leak.Origin)
		}

		fmt.Fprintf(w, "\nSummary: %d block(s) leaked, total %d byte(s) unfreed.\n",
			r.LeakedBlocks, r.LeakedBytes)
	}

	fmt.Fprintf(w, "===== End of Report =====\n")
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

// WriteFile appends the report to path under a file lock, so several
// instrumented processes can safely share one report destination.
func (r *Report) WriteFile(path string, asJSON bool) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report file %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report file %s: %w", path, err)
	}
	defer f.Close()

	if asJSON {
		return r.WriteJSON(f)
	}

	r.WriteText(f)

	return nil
}
