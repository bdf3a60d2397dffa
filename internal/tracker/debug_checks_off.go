//go:build !debug

package tracker

// debugVerify checks ledger/counter consistency after each operation in
// debug builds. No-op in normal builds.
func debugVerify(t *Tracker) {}
