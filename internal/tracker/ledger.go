package tracker

import "unsafe"

// AllocationRecord describes one currently-live allocation. The identity is
// used purely as a lookup key and is never dereferenced by the tracker.
type AllocationRecord struct {
	Identity unsafe.Pointer
	Size     uintptr
	Origin   Origin
}

// ledgerEntry is the ledger's internal node. Entries are linked in allocation
// order, newest first, so snapshots come out most-recently-allocated first.
type ledgerEntry struct {
	record AllocationRecord
	prev   *ledgerEntry
	next   *ledgerEntry
}

// ledger maps live pointer identities to their allocation metadata.
// An identity appears at most once.
type ledger struct {
	entries map[unsafe.Pointer]*ledgerEntry
	head    *ledgerEntry // most recently recorded
	bytes   uintptr
}

func newLedger() *ledger {
	return &ledger{
		entries: make(map[unsafe.Pointer]*ledgerEntry),
	}
}

// record inserts a new live allocation. The caller guarantees the identity is
// not already present: the underlying allocator just returned it as fresh.
func (l *ledger) record(identity unsafe.Pointer, size uintptr, origin Origin) {
	entry := &ledgerEntry{
		record: AllocationRecord{Identity: identity, Size: size, Origin: origin},
		next:   l.head,
	}

	if l.head != nil {
		l.head.prev = entry
	}

	l.head = entry
	l.entries[identity] = entry
	l.bytes += size
}

// take removes the record for identity and returns its size, false if the
// identity is not tracked. Both the release and resize paths funnel through
// this single mutating lookup.
func (l *ledger) take(identity unsafe.Pointer) (uintptr, bool) {
	entry, ok := l.entries[identity]
	if !ok {
		return 0, false
	}

	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		l.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	}

	delete(l.entries, identity)
	l.bytes -= entry.record.Size

	return entry.record.Size, true
}

// snapshot returns every live record, most recently allocated first.
func (l *ledger) snapshot() []AllocationRecord {
	records := make([]AllocationRecord, 0, len(l.entries))
	for entry := l.head; entry != nil; entry = entry.next {
		records = append(records, entry.record)
	}

	return records
}

// liveBlocks returns the number of live allocations.
func (l *ledger) liveBlocks() int {
	return len(l.entries)
}

// liveBytes returns the total size of live allocations.
func (l *ledger) liveBytes() uintptr {
	return l.bytes
}

// history is the set of identities that have been validly released at least
// once during the run. It is append-only: identities are never removed, even
// if the underlying allocator later reissues the same address. A duplicate
// insert is a no-op.
type history struct {
	released map[unsafe.Pointer]struct{}
}

func newHistory() *history {
	return &history{released: make(map[unsafe.Pointer]struct{})}
}

func (h *history) contains(identity unsafe.Pointer) bool {
	_, ok := h.released[identity]
	return ok
}

func (h *history) insert(identity unsafe.Pointer) {
	h.released[identity] = struct{}{}
}

func (h *history) size() int {
	return len(h.released)
}
