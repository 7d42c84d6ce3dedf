// Package netsock implements the coroutine-friendly socket adapter (C3):
// a cooperative async wrapper over a simhost.RawSocket, with a loopback
// mode (no underlying socket, a bounded byte cache) for same-rank
// communication. See spec.md §4.3.
package netsock

import (
	"github.com/glycerine/idem"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/simhost"
)

// DefaultCacheLimit is the loopback cache bound from spec.md §6
// (socket_cache_limit default).
const DefaultCacheLimit = 212_992

// AcceptResult is the payload of an Accept() operation.
type AcceptResult struct {
	Sock *Socket
	Addr string
}

type sendReq struct {
	data []byte
	sent int
	op   coro.Operation[SendResult]
}

// SendResult is the payload of a Send() operation.
type SendResult struct {
	N int
}

type recvReq struct {
	want int // 0 == "all currently available"
	acc  []byte
	op   coro.Operation[[]byte]
}

// Socket owns one underlying RawSocket, or none (loopback). Field layout
// and invariants follow spec.md §3 (Socket): at most one of
// connected/listening; closed is terminal; pending queues are FIFO and,
// on close, fan out ERROR_SHUTDOWN to everything still pending.
type Socket struct {
	peerRank uint64 // used only to tag failures in logs/errors
	clock    simhost.Clock
	raw      simhost.RawSocket // nil => loopback

	connected bool
	listening bool
	// closed is the idempotent-close flag: Close() and a raw peer-close
	// both race to close() it, and both must be no-ops on the second
	// caller.
	closed  *idem.IdemCloseChan
	blocked bool

	acceptQ  []coro.Operation[AcceptResult]
	connectQ []coro.Operation[error]
	sendQ    []*sendReq
	recvQ    []*recvReq

	cache      []byte
	cacheLimit int

	txBytes uint64
	rxBytes uint64
}

// New wraps raw (nil for a loopback socket) for cooperative use.
func New(clock simhost.Clock, raw simhost.RawSocket, peerRank uint64) *Socket {
	s := &Socket{
		clock:      clock,
		raw:        raw,
		peerRank:   peerRank,
		cacheLimit: DefaultCacheLimit,
		closed:     idem.NewIdemCloseChan(),
	}
	if raw != nil {
		raw.OnAccept(s.onRawAccept)
		raw.OnSendRoom(s.pumpSend)
		raw.OnRecvArrived(s.pumpRecv)
		raw.OnClose(s.onRawClose)
	}
	return s
}

// SetCacheLimit overrides the loopback cache bound (spec §6's
// socket_cache_limit / mtu_size-derived internal cache limit).
func (s *Socket) SetCacheLimit(n int) { s.cacheLimit = n }

func (s *Socket) IsLoopback() bool { return s.raw == nil }

// Bind delegates synchronously to the underlying socket.
func (s *Socket) Bind(addr string) error {
	if s.raw == nil {
		return mapErr(s.peerRank, simhost.ErrBadF)
	}
	return s.raw.Bind(addr)
}

// Accept transitions the socket to listening on first call and returns an
// Operation satisfied, in FIFO order, by the next inbound connection.
func (s *Socket) Accept() coro.Operation[AcceptResult] {
	op := coro.New[AcceptResult]()
	if s.closed.IsClosed() {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrShutdown))
		return op
	}
	if s.raw == nil {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrBadF))
		return op
	}
	if s.connected {
		panic("netsock: Accept called on a socket that already Connect()ed")
	}
	if !s.listening {
		if err := s.raw.Listen(); err != nil {
			op.TerminateFailure(coro.NewFailure("ERROR_BADF", s.peerRank, err))
			return op
		}
		s.listening = true
	}
	s.acceptQ = append(s.acceptQ, op)
	s.pumpAccept()
	return op
}

func (s *Socket) pumpAccept() {
	for len(s.acceptQ) > 0 {
		conn, addr, errc := s.raw.Accept()
		if errc == simhost.ErrAgain {
			return
		}
		op := s.acceptQ[0]
		s.acceptQ = s.acceptQ[1:]
		if errc != simhost.ErrNone {
			op.TerminateFailure(mapErr(s.peerRank, errc))
			continue
		}
		child := New(s.clock, conn, s.peerRank)
		child.connected = true
		op.Terminate(AcceptResult{Sock: child, Addr: addr})
	}
}

// onRawAccept fires when the underlying socket reports an inbound
// connection. An inbound connect with no pending Accept() operation is a
// programming error per spec.md §4.3, and fatal.
func (s *Socket) onRawAccept() {
	if len(s.acceptQ) == 0 {
		panic("netsock: inbound connection completion with no pending Accept() operation")
	}
	s.pumpAccept()
}

// Connect is single-use: once connected, Accept/Listen are forbidden on
// this socket for the rest of its life.
func (s *Socket) Connect(addr string) coro.Operation[error] {
	op := coro.New[error]()
	if s.closed.IsClosed() {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrShutdown))
		return op
	}
	if s.listening || s.connected {
		panic("netsock: Connect called on a listening or already-connected socket")
	}
	if s.raw == nil {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrBadF))
		return op
	}
	errc := s.raw.Connect(addr)
	switch {
	case errc == simhost.ErrNone:
		s.raw.OnConnect(func(e simhost.SockErr) {
			if e == simhost.ErrNone {
				s.connected = true
				op.Terminate(nil)
			} else {
				op.TerminateFailure(mapErr(s.peerRank, e))
			}
		})
	default:
		op.TerminateFailure(mapErr(s.peerRank, errc))
	}
	return op
}

// Send enqueues packet for transmission; sends on one socket complete in
// FIFO order (spec P4). The head of the queue drains as much as fits on
// each wake, then yields to whichever operation is next.
func (s *Socket) Send(packet []byte) coro.Operation[SendResult] {
	op := coro.New[SendResult]()
	if s.closed.IsClosed() {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrShutdown))
		return op
	}
	req := &sendReq{data: packet, op: op}
	s.sendQ = append(s.sendQ, req)
	s.pumpSend()
	return op
}

func (s *Socket) pumpSend() {
	// Block()/Unblock() is exactly the conditional awaitable spec.md §4.2
	// describes: suspends only while s.blocked is true, and Unblock()
	// re-invokes pumpSend to give it another chance to resume.
	proceed := false
	coro.Conditional(func() bool { return s.blocked }).Suspend(func() { proceed = true })
	if !proceed {
		return
	}
	for len(s.sendQ) > 0 {
		head := s.sendQ[0]
		if s.raw == nil {
			n := s.loopbackWrite(head.data[head.sent:])
			head.sent += n
			s.txBytes += uint64(n)
			if head.sent >= len(head.data) {
				s.sendQ = s.sendQ[1:]
				head.op.Terminate(SendResult{N: head.sent})
				continue
			}
			return // cache full: wait for a loopback drain wake.
		}
		n, errc := s.raw.Send(head.data[head.sent:])
		if n > 0 {
			head.sent += n
			s.txBytes += uint64(n)
		}
		if head.sent >= len(head.data) {
			s.sendQ = s.sendQ[1:]
			head.op.Terminate(SendResult{N: head.sent})
			continue
		}
		if isTransient(errc) {
			return // wait for OnSendRoom.
		}
		if errc != simhost.ErrNone {
			s.sendQ = s.sendQ[1:]
			head.op.TerminateFailure(mapErr(s.peerRank, errc))
			continue
		}
		// partial write, no error: raw is out of room but not erroring;
		// treat like transient and wait for the next OnSendRoom wake.
		return
	}
}

// Receive returns all currently-available bytes (n==0) or accumulates
// exactly n bytes / until the peer closes (n>0). Concurrent receives on
// one socket resolve in FIFO order.
func (s *Socket) Receive(n int) coro.Operation[[]byte] {
	op := coro.New[[]byte]()
	if s.closed.IsClosed() {
		op.TerminateFailure(mapErr(s.peerRank, simhost.ErrShutdown))
		return op
	}
	req := &recvReq{want: n, op: op}
	s.recvQ = append(s.recvQ, req)
	s.pumpRecv()
	return op
}

func (s *Socket) pumpRecv() {
	proceed := false
	coro.Conditional(func() bool { return s.blocked }).Suspend(func() { proceed = true })
	if !proceed {
		return
	}
	for len(s.recvQ) > 0 {
		head := s.recvQ[0]
		if s.raw == nil {
			if !s.drainLoopbackRecv(head) {
				return
			}
			s.recvQ = s.recvQ[1:]
			continue
		}
		if !s.drainRawRecv(head) {
			return
		}
		s.recvQ = s.recvQ[1:]
	}
}

// drainRawRecv reports whether head is now resolved (true) or must wait
// for another wake (false).
func (s *Socket) drainRawRecv(head *recvReq) bool {
	buf := make([]byte, 4096)
	for {
		if head.want > 0 && len(head.acc) >= head.want {
			head.op.Terminate(head.acc)
			return true
		}
		avail := s.raw.RxAvailable()
		if avail == 0 {
			if head.want == 0 {
				head.op.Terminate(head.acc)
				return true
			}
			return false
		}
		want := len(buf)
		if head.want > 0 {
			remaining := head.want - len(head.acc)
			if remaining < want {
				want = remaining
			}
		}
		n, errc := s.raw.Recv(buf[:want])
		if n > 0 {
			head.acc = append(head.acc, buf[:n]...)
			s.rxBytes += uint64(n)
		}
		switch {
		case errc == simhost.ErrShutdown:
			if head.want == 0 || len(head.acc) >= head.want {
				head.op.Terminate(head.acc)
			} else {
				head.op.TerminateFailure(mapErr(s.peerRank, simhost.ErrShutdown))
			}
			return true
		case isTransient(errc):
			if head.want == 0 && len(head.acc) > 0 {
				head.op.Terminate(head.acc)
				return true
			}
			return false
		case errc != simhost.ErrNone:
			head.op.TerminateFailure(mapErr(s.peerRank, errc))
			return true
		}
		if head.want == 0 {
			head.op.Terminate(head.acc)
			return true
		}
	}
}

// onRawClose fans out ERROR_SHUTDOWN to every pending operation, per
// spec.md §9's resolution of the socket::close() open question: any
// successful close (ours or the peer's) always fans out.
func (s *Socket) onRawClose(e simhost.SockErr) {
	s.closed.Close()
	s.failAll(mapErr(s.peerRank, simhost.ErrShutdown))
}

func (s *Socket) failAll(f *coro.Failure) {
	for _, op := range s.acceptQ {
		op.TerminateFailure(f)
	}
	s.acceptQ = nil
	for _, op := range s.connectQ {
		op.TerminateFailure(f)
	}
	s.connectQ = nil
	for _, req := range s.sendQ {
		req.op.TerminateFailure(f)
	}
	s.sendQ = nil
	for _, req := range s.recvQ {
		req.op.TerminateFailure(f)
	}
	s.recvQ = nil
}

// Close is idempotent and terminal, and fans out ERROR_SHUTDOWN to every
// pending accept/connect/send/receive operation.
func (s *Socket) Close() error {
	if s.closed.IsClosed() {
		return nil
	}
	s.closed.Close()
	var err error
	if s.raw != nil {
		err = s.raw.Close()
	}
	s.failAll(coro.NewFailure("ERROR_SHUTDOWN", s.peerRank, errString(simhost.ErrShutdown)))
	return err
}

func (s *Socket) CloseSend() error {
	if s.raw == nil {
		s.cacheLimit = 0
		return nil
	}
	return s.raw.ShutdownSend()
}

func (s *Socket) CloseReceive() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.ShutdownRecv()
}

// Block pauses draining of the send/receive FIFOs; Unblock re-kicks both.
func (s *Socket) Block()   { s.blocked = true }
func (s *Socket) Unblock() {
	s.blocked = false
	s.pumpSend()
	s.pumpRecv()
}

func (s *Socket) TxBytes() uint64 { return s.txBytes }
func (s *Socket) RxBytes() uint64 { return s.rxBytes }
func (s *Socket) Closed() bool    { return s.closed.IsClosed() }
