package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	ulidMu  sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

// generateULID returns a 26-character Crockford base32 job ID: a 48-bit
// millisecond timestamp, a per-millisecond sequence, then 64 random bits.
// IDs sort by creation time.
func generateULID() string {
	ulidMu.Lock()
	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}
	seq := lastSeq
	ulidMu.Unlock()

	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], ts<<16|uint64(seq))
	rand.Read(b[8:])
	return encodeBase32(b)
}

// encodeBase32 writes 128 bits as 26 symbols, the first carrying 3 bits.
func encodeBase32(b [16]byte) string {
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	var out [26]byte
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}
