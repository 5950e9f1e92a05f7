package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewTemporary returns a client-side identifier for optimistic entries. ULIDs
// sort by creation time, so newest-first ordering survives a reload.
func NewTemporary() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IsTemporary reports whether id looks like a value produced by NewTemporary.
func IsTemporary(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
