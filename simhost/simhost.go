// Package simhost declares the external collaborators Coronet is written
// against but does not implement: the host discrete-event simulator's
// clock/scheduler, and the underlying stream-socket primitive. Both are
// out of scope per spec.md §1 ("Out of scope, treated as external
// collaborators"); this package gives them concrete Go shapes so the rest
// of the module has something to compile against, and simhost/refhost
// supplies a minimal in-memory implementation for tests.
package simhost

import "time"

// Clock is the host simulator's time source and scheduler.
type Clock interface {
	// Now returns the current simulated time.
	Now() time.Time
	// Schedule arranges for cb to run delay into the simulated future.
	// It returns a cancel function; calling it after the callback has
	// already fired is a no-op.
	Schedule(delay time.Duration, cb func()) (cancel func())
	// ScheduleNow arranges for cb to run at the current simulated tick,
	// after the current callback chain unwinds (spec's schedule_now).
	ScheduleNow(cb func())
}

// SockErr enumerates the errno-shaped failures a RawSocket operation can
// surface, per spec.md §7.
type SockErr int

const (
	ErrNone SockErr = iota
	ErrAgain
	ErrMsgSize
	ErrBadF
	ErrShutdown
	ErrNoRoute
)

func (e SockErr) String() string {
	switch e {
	case ErrNone:
		return "OK"
	case ErrAgain:
		return "EAGAIN"
	case ErrMsgSize:
		return "EMSGSIZE"
	case ErrBadF:
		return "EBADF"
	case ErrShutdown:
		return "SHUTDOWN"
	case ErrNoRoute:
		return "ENOROUTE"
	default:
		return "EUNKNOWN"
	}
}

// RawSocket is the underlying stream-socket primitive netsock.Socket
// cooperatively wraps. Implementations backpressure the caller by
// reporting ErrAgain from Send/Recv and firing the corresponding
// OnSendRoom/OnRecvArrived callback later.
type RawSocket interface {
	Bind(addr string) error
	Listen() error
	Connect(addr string) SockErr
	Accept() (RawSocket, string, SockErr)

	Send(p []byte) (n int, err SockErr)
	Recv(p []byte) (n int, err SockErr)

	TxAvailable() int
	RxAvailable() int

	ShutdownSend() error
	ShutdownRecv() error
	Close() error

	OnAccept(func())
	OnConnect(func(SockErr))
	OnSendRoom(func())
	OnRecvArrived(func())
	OnClose(func(SockErr))
}
