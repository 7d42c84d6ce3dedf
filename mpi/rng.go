package mpi

import (
	"encoding/binary"

	"github.com/glycerine/coronet/internal/blake3xof"
)

// RNG is the per-rank-seeded deterministic random source leader election
// draws its vote from: a keyed BLAKE3 XOF stream consumed 8 bytes at a
// time.
type RNG struct {
	xof *blake3xof.Blake3
}

// NewRNG seeds a stream from a 32-byte key, typically derived from the
// rank and a run-wide seed so runs are reproducible.
func NewRNG(seed [32]byte) *RNG {
	return &RNG{xof: blake3xof.NewBlake3WithKey(seed)}
}

// SeedFor derives a per-rank key from a run seed and rank, so every rank
// in a communicator draws from an independent but reproducible stream.
func SeedFor(runSeed [32]byte, rank uint64) [32]byte {
	var out [32]byte
	copy(out[:], runSeed[:])
	var rb [8]byte
	binary.LittleEndian.PutUint64(rb[:], rank)
	for i := range rb {
		out[i] ^= rb[i]
	}
	return out
}

func (r *RNG) Uint64() uint64 {
	var b [8]byte
	r.xof.ReadXOF(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
