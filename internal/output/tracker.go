package output

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
)

// ResetThreshold is the remaining ordinal headroom below which a clear restarts numbering.
const ResetThreshold = 16

// Tracker remembers the last output identity of each execution unit. Entries are
// populated lazily by scanning the unit's exact-context directory; the directory lookup
// and scan run without holding the tracker lock.
type Tracker struct {
	mu      sync.Mutex
	entries map[UnitKey]Identity

	dirFor func(UnitKey) string
	logger *zap.Logger
}

// NewTracker builds a tracker; dirFor names the exact-context directory of a unit.
func NewTracker(dirFor func(UnitKey) string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		entries: make(map[UnitKey]Identity),
		dirFor:  dirFor,
		logger:  logger,
	}
}

func (t *Tracker) Current(key UnitKey) Identity {
	cur := t.lockLoaded(key)
	t.mu.Unlock()
	return cur
}

func (t *Tracker) Record(key UnitKey, id Identity) {
	t.mu.Lock()
	t.entries[key] = id
	t.mu.Unlock()
}

// Forget drops the cached entry so the next query rescans disk.
func (t *Tracker) Forget(key UnitKey) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// ForgetDocument drops the entries of every unit of docID.
func (t *Tracker) ForgetDocument(docID string) {
	t.mu.Lock()
	for key := range t.entries {
		if key.DocumentID == docID {
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()
}

// Next returns the identity a new output of the given kind should use. Output of the
// same kind as the last one shares its slot; any other kind advances the ordinal.
func (t *Tracker) Next(key UnitKey, kind Kind) Identity {
	cur := t.lockLoaded(key)
	defer t.mu.Unlock()
	if cur.Kind == kind {
		return cur
	}
	next := Identity{Ordinal: (cur.Ordinal + 1) % MaxOrdinal, Kind: kind}
	t.entries[key] = next
	return next
}

// ResetIfExhausted restarts numbering at {0, None} when the unit is close to wrapping.
func (t *Tracker) ResetIfExhausted(key UnitKey) bool {
	cur := t.lockLoaded(key)
	defer t.mu.Unlock()
	if MaxOrdinal-cur.Ordinal >= ResetThreshold {
		return false
	}
	t.entries[key] = Identity{}
	t.logger.Info("output ordinal reset",
		zap.String("doc_id", key.DocumentID),
		zap.String("unit_id", key.UnitID),
		zap.Uint32("ordinal", cur.Ordinal))
	return true
}

// lockLoaded returns the unit's entry with t.mu held, scanning disk first if needed.
// The caller unlocks.
func (t *Tracker) lockLoaded(key UnitKey) Identity {
	t.mu.Lock()
	if id, ok := t.entries[key]; ok {
		return id
	}
	t.mu.Unlock()

	scanned := t.scan(key)
	t.mu.Lock()
	// another caller may have scanned or recorded meanwhile
	if id, ok := t.entries[key]; ok {
		return id
	}
	t.entries[key] = scanned
	return scanned
}

func (t *Tracker) scan(key UnitKey) Identity {
	var last Identity
	if t.dirFor == nil {
		return last
	}
	dir := t.dirFor(key)
	items, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("scan output directory failed", zap.String("dir", dir), zap.Error(err))
		}
		return last
	}
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		id, ok := ParseFileName(item.Name())
		if !ok {
			continue
		}
		if id.Ordinal > last.Ordinal || (id.Ordinal == last.Ordinal && last.Kind == KindNone && id.Kind != KindNone) {
			last = id
		}
	}
	return last
}
