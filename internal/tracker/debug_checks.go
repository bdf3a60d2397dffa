//go:build debug

package tracker

import "fmt"

// In debug builds, verify the ledger/counter invariant after every operation.

func debugVerify(t *Tracker) {
	live := uint64(t.ledger.liveBytes()) + uint64(t.lostBytes)
	if live != t.stats.BytesAllocated-t.stats.BytesFreed {
		panic(fmt.Sprintf("debug: ledger bytes %d inconsistent with counters (allocated %d, freed %d)",
			live, t.stats.BytesAllocated, t.stats.BytesFreed))
	}

	if t.reported && !t.armed {
		panic("debug: report delivered without being armed")
	}
}
