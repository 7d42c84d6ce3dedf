package wire

import (
	"encoding/binary"

	cristalbase64 "github.com/cristalhq/base64"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/internal/xlog"
	"github.com/glycerine/coronet/netsock"
)

var log = xlog.New("wire")

// FakeTag marks a size-only transfer: bandwidth modeling without
// constructing real values, per spec.md §4.4. The dual (socket, FakeTag,
// dimensions...) signature performs only the byte-level transfer of a
// FakeDataPacket sized from the dimensions, with identical on-wire timing
// to the real typed path it stands in for.
type FakeTag struct{ ElementStride int }

// FakeDataPacket is the payload sent/received in fake mode: count*stride
// zero bytes, standing in for count real elements of ElementStride bytes.
type FakeDataPacket struct {
	Count  int
	Stride int
}

func (p FakeDataPacket) Bytes() int { return p.Count * p.Stride }

// sampleHeader renders a fake packet's count and stride (4 big-endian
// bytes each) as URL-safe base64, for trace-level identification of fake
// traffic without dumping the full (all-zero) payload.
func (p FakeDataPacket) sampleHeader() string {
	var head [8]byte
	binary.BigEndian.PutUint32(head[0:4], uint32(p.Count))
	binary.BigEndian.PutUint32(head[4:8], uint32(p.Stride))
	return cristalbase64.URLEncoding.EncodeToString(head[:])
}

// SendFake transmits a FakeDataPacket of tag.ElementStride*count bytes,
// grounding spec.md's send_fake(rank, size).
func SendFake(s *netsock.Socket, tag FakeTag, count int) coro.Operation[struct{}] {
	pkt := FakeDataPacket{Count: count, Stride: tag.ElementStride}
	log.Debugf("sending fake packet %s (%d bytes)", pkt.sampleHeader(), pkt.Bytes())
	buf := make([]byte, pkt.Bytes())
	send := s.Send(buf)
	return coro.Then(send, func(netsock.SendResult) struct{} { return struct{}{} })
}

// ReceiveFake drains exactly tag.ElementStride*count bytes without
// interpreting them, discarding the payload once fully received.
func ReceiveFake(s *netsock.Socket, tag FakeTag, count int) coro.Operation[struct{}] {
	n := tag.ElementStride * count
	recv := s.Receive(n)
	return coro.Then(recv, func([]byte) struct{} { return struct{}{} })
}

// GatherFake models gather_fake<T>(root, shape...): every non-root rank
// sends one fake packet to root, and root receives one from each.
func GatherFake(root int, myRank int, peers map[int]*netsock.Socket, tag FakeTag, count int) coro.Operation[struct{}] {
	if myRank != root {
		sock, ok := peers[root]
		if !ok {
			out := coro.New[struct{}]()
			out.TerminateFailure(coro.NewFailure("ERROR_BADF", uint64(root), errNoPeer(root)))
			return out
		}
		return SendFake(sock, tag, count)
	}
	out := coro.New[struct{}]()
	ranks := make([]int, 0, len(peers))
	for r := range peers {
		if r != root {
			ranks = append(ranks, r)
		}
	}
	// Each round awaits the next peer's fake receive through the C2
	// operation-backed awaiter rather than a raw OnComplete registration,
	// per spec.md §4.2's "coroutine body awaits an Operation" suspension.
	var step func(i int)
	step = func(i int) {
		if i >= len(ranks) {
			out.Terminate(struct{}{})
			return
		}
		aw := coro.Await(ReceiveFake(peers[ranks[i]], tag, count))
		resume := func() {
			if _, err := aw.Resume(); err != nil {
				out.TerminateFailure(err.(*coro.Failure))
				return
			}
			step(i + 1)
		}
		if aw.Ready() {
			resume()
			return
		}
		aw.Suspend(resume)
	}
	step(0)
	return out
}

type errNoPeerT struct{ rank int }

func (e errNoPeerT) Error() string { return "wire: no peer socket for rank" }

func errNoPeer(rank int) error { return errNoPeerT{rank} }
