package mpiapp

import (
	"encoding/binary"

	"github.com/glycerine/base58"
)

// tag renders a communicator id as a short human-readable base58 string
// for log lines.
func tag(rank uint64, commID uint32) string {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[0:8], rank)
	binary.BigEndian.PutUint32(buf[8:12], commID)
	return base58.Encode(buf[:])
}
