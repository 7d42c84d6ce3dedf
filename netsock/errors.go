package netsock

import (
	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/simhost"
)

// mapErr turns a simhost.SockErr into the symbolic coro.Failure spec.md §7
// requires: transient socket errors (agen, msgsize) are meant to be
// retried by resuming the operation on the next wake, terminal ones
// (badf, shutdown, noroute) are surfaced immediately.
func mapErr(peer uint64, e simhost.SockErr) *coro.Failure {
	switch e {
	case simhost.ErrNone:
		return nil
	case simhost.ErrAgain:
		return coro.NewFailure("ERROR_AGAIN", peer, errString(e))
	case simhost.ErrMsgSize:
		return coro.NewFailure("ERROR_MSGSIZE", peer, errString(e))
	case simhost.ErrBadF:
		return coro.NewFailure("ERROR_BADF", peer, errString(e))
	case simhost.ErrShutdown:
		return coro.NewFailure("ERROR_SHUTDOWN", peer, errString(e))
	case simhost.ErrNoRoute:
		return coro.NewFailure("ERROR_NOROUTE", peer, errString(e))
	default:
		return coro.NewFailure("ERROR_BADF", peer, errString(e))
	}
}

// isTransient reports whether e should be retried on the next wake rather
// than surfaced to the caller immediately.
func isTransient(e simhost.SockErr) bool {
	return e == simhost.ErrAgain || e == simhost.ErrMsgSize
}

type sockErrString struct{ e simhost.SockErr }

func (s sockErrString) Error() string { return s.e.String() }

func errString(e simhost.SockErr) error { return sockErrString{e} }
