package build

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job IDs are ULIDs: a 48-bit millisecond timestamp, a 16-bit in-millisecond
// sequence and 64 random bits, Crockford base32 encoded to 26 characters.

var (
	idMu   sync.Mutex
	idLast uint64
	idSeq  uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

func newJobID() string {
	idMu.Lock()
	ts := uint64(time.Now().UnixMilli())
	if ts <= idLast {
		ts = idLast
		idSeq++
	} else {
		idLast = ts
		idSeq = 0
	}
	seq := idSeq
	idMu.Unlock()

	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], ts<<16|uint64(seq))
	rand.Read(b[8:])
	return encodeID(b)
}

// encodeID writes the 128-bit value five bits at a time from the low end.
func encodeID(b [16]byte) string {
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
