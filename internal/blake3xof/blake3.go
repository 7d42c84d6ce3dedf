// Package blake3xof provides a keyed BLAKE3 extendable-output stream,
// used as the deterministic per-rank random source for leader election.
package blake3xof

import (
	"io"
	"sync"

	"github.com/glycerine/blake3"
)

// Blake3 is a keyed BLAKE3 hasher used as a pseudo-random byte stream.
// Each Read advances the stream's read offset, so repeated reads never
// repeat bytes for a given key.
type Blake3 struct {
	mut        sync.Mutex
	hasher     *blake3.Hasher
	readOffset int64
}

// NewBlake3WithKey seeds a new stream from a 32-byte key.
func NewBlake3WithKey(key [32]byte) *Blake3 {
	return &Blake3{
		hasher: blake3.New(64, key[:]),
	}
}

// ReadXOF fills p with the next len(p) pseudo-random bytes of the stream.
func (b *Blake3) ReadXOF(p []byte) (n int, err error) {
	b.mut.Lock()
	defer b.mut.Unlock()
	r := b.hasher.XOF()

	nr := int64(len(p))
	if _, err = r.Seek(b.readOffset, io.SeekStart); err != nil {
		return 0, err
	}
	b.readOffset += nr

	n, err = r.Read(p)
	if n != len(p) {
		panic("short read from blake3 XOF")
	}
	return
}
