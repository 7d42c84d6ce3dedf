package mpi_test

import (
	"testing"

	. "github.com/glycerine/goconvey/convey"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/mpi"
)

func TestRingAllReduceByteAccounting(t *testing.T) {
	Convey("ring_all_reduce moves exactly 2*(n-1)*size bytes total, and no rank's share strays far from the others when size doesn't divide evenly by group size", t, func() {
		host := newHost()
		ranks := []uint64{0, 1, 2, 3}
		comms := buildWorld(host, ranks)
		const size = 10 // 10 % 4 == 2: remainder spreads over two of the four partitions.
		n := len(ranks)

		ops := map[uint64]coro.Operation[struct{}]{}
		for _, r := range ranks {
			ops[r] = mpi.RingAllReduce(comms[r], size)
		}
		host.RunAll()

		var totalTx uint64
		txByRank := make([]uint64, 0, n)
		for _, r := range ranks {
			_, err := ops[r].Result()
			So(err, ShouldBeNil)
			tx := comms[r].TxBytes()
			totalTx += tx
			txByRank = append(txByRank, tx)
		}

		So(totalTx, ShouldEqual, uint64(2*(n-1)*size))

		min, max := txByRank[0], txByRank[0]
		for _, v := range txByRank {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		So(max-min, ShouldBeLessThanOrEqualTo, uint64(2))
	})
}
