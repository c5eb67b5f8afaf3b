package session

// KeySize is the byte length of a session public key.
const KeySize = 32

// EntryLifetimeMillis is the fixed validity window of a session entry
// (30 days).
const EntryLifetimeMillis int64 = 2_592_000_000

// Entry is one session inside a store, keyed by its public key.
type Entry struct {
	Key       [KeySize]byte
	CreatedAt int64
	ExpiresAt int64
}

// NewEntry returns an entry created at now with the standard lifetime.
func NewEntry(key [KeySize]byte, now int64) Entry {
	return Entry{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now + EntryLifetimeMillis,
	}
}

// LiveAt reports whether the entry is still valid at now. The expiry
// instant itself is still live.
func (e Entry) LiveAt(now int64) bool {
	return now <= e.ExpiresAt
}

// Meta is the per-owner session store record.
type Meta struct {
	ID             string
	Owner          string
	ProfileID      string
	SessionCounter int64
	CreatedAt      int64
}
