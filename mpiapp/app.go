package mpiapp

import (
	"fmt"
	"time"

	"github.com/glycerine/idem"
	"github.com/glycerine/ipaddr"

	"github.com/glycerine/coronet/coro"
	"github.com/glycerine/coronet/internal/xlog"
	"github.com/glycerine/coronet/mpi"
	"github.com/glycerine/coronet/netsock"
	"github.com/glycerine/coronet/simhost"
)

var log = xlog.New("mpiapp")

// LocalAddr picks an externally-routable host and an available port for
// a rank that wasn't given an explicit address.
func LocalAddr() string {
	return fmt.Sprintf("%s:%d", ipaddr.GetExternalIP(), ipaddr.GetAvailPort())
}

// Listener is the minimal bind/accept surface Application needs from the
// underlying RawSocket layer to stand up one rank's listening endpoint.
type Listener interface {
	NewSocket() simhost.RawSocket
}

// UserFunc is one unit of work the run loop executes to completion before
// starting the next.
type UserFunc func(app *Application) coro.Operation[struct{}]

// Application owns one rank's peer sockets, its communicator registry,
// and the sequential run loop over UserFuncs (spec.md §4.6).
type Application struct {
	rank   uint64
	addrs  *AddrTable
	clock  simhost.Clock
	reg    Listener

	sockets map[uint64]*netsock.Socket
	comms   map[uint32]*mpi.Communicator
	nextID  uint32

	halt *idem.Halter
	rng  *mpi.RNG
}

// Config bundles Application's construction parameters.
type Config struct {
	Rank    uint64
	Addrs   *AddrTable
	Clock   simhost.Clock
	Reg     Listener
	RunSeed [32]byte
}

func New(cfg Config) *Application {
	return &Application{
		rank:    cfg.Rank,
		addrs:   cfg.Addrs,
		clock:   cfg.Clock,
		reg:     cfg.Reg,
		sockets: make(map[uint64]*netsock.Socket),
		comms:   make(map[uint32]*mpi.Communicator),
		nextID:  mpi.IDSelf + 1,
		halt:    idem.NewHalter(),
		rng:     mpi.NewRNG(mpi.SeedFor(cfg.RunSeed, cfg.Rank)),
	}
}

// Halter exposes the application's cooperative lifecycle signal, an
// idem.Halter used for shutdown coordination.
func (a *Application) Halter() *idem.Halter { return a.halt }

// Bringup opens a listener on this rank's address, then for every other
// member rank accepts (if its rank is lower) or connects (if higher),
// preventing duplicate connections. On completion it registers a
// loopback socket for self and constructs the WORLD and SELF
// communicators.
func (a *Application) Bringup() coro.Operation[struct{}] {
	out := coro.New[struct{}]()
	myAddr, ok := a.addrs.AddrOf(a.rank)
	if !ok {
		out.TerminateFailure(protocolFailure(fmt.Sprintf("mpiapp: no address for self rank %d", a.rank)))
		return out
	}

	raw := a.reg.NewSocket()
	listener := netsock.New(a.clock, raw, a.rank)
	if err := listener.Bind(myAddr); err != nil {
		out.TerminateFailure(coro.NewFailure("ERROR_BADF", a.rank, err))
		return out
	}

	peers := a.addrs.Ranks()
	remaining := 0
	for _, r := range peers {
		if r != a.rank {
			remaining++
		}
	}
	if remaining == 0 {
		a.finishBringup(out)
		return out
	}

	done := func(peerRank uint64, sock *netsock.Socket, fail *coro.Failure) {
		if fail != nil {
			out.TerminateFailure(fail)
			return
		}
		a.sockets[peerRank] = sock
		remaining--
		if remaining == 0 {
			a.finishBringup(out)
		}
	}

	for _, r := range peers {
		if r == a.rank {
			continue
		}
		if r < a.rank {
			acceptOp := listener.Accept()
			acceptOp.OnComplete(func(res *netsock.AcceptResult, fail *coro.Failure) {
				if fail != nil {
					out.TerminateFailure(fail)
					return
				}
				peerRank, ok := a.addrs.RankOf(res.Addr)
				if !ok {
					out.TerminateFailure(protocolFailure(fmt.Sprintf("mpiapp: inbound connection from unknown address %q", res.Addr)))
					return
				}
				done(peerRank, res.Sock, nil)
			})
		} else {
			peerAddr, ok := a.addrs.AddrOf(r)
			if !ok {
				out.TerminateFailure(protocolFailure(fmt.Sprintf("mpiapp: no address for rank %d", r)))
				return out
			}
			raw := a.reg.NewSocket()
			sock := netsock.New(a.clock, raw, r)
			if err := sock.Bind(myAddr); err != nil {
				out.TerminateFailure(coro.NewFailure("ERROR_BADF", r, err))
				return out
			}
			connectOp := sock.Connect(peerAddr)
			rr := r
			connectOp.OnComplete(func(_ *error, fail *coro.Failure) {
				if fail != nil {
					out.TerminateFailure(fail)
					return
				}
				done(rr, sock, nil)
			})
		}
	}
	return out
}

func (a *Application) finishBringup(out coro.Operation[struct{}]) {
	a.sockets[a.rank] = netsock.New(a.clock, nil, a.rank)

	world, err := mpi.New(mpi.IDWorld, a.rank, a.sockets, a.rng)
	if err != nil {
		out.TerminateFailure(protocolFailure(err.Error()))
		return
	}
	a.comms[mpi.IDWorld] = world

	self, err := mpi.New(mpi.IDSelf, a.rank, map[uint64]*netsock.Socket{a.rank: a.sockets[a.rank]}, a.rng)
	if err != nil {
		out.TerminateFailure(protocolFailure(err.Error()))
		return
	}
	a.comms[mpi.IDSelf] = self

	out.Terminate(struct{}{})
}

// World returns the WORLD communicator, valid only after Bringup completes.
func (a *Application) World() *mpi.Communicator { return a.comms[mpi.IDWorld] }

// Self returns the singleton SELF communicator.
func (a *Application) Self() *mpi.Communicator { return a.comms[mpi.IDSelf] }

// Duplicate copies src's handle under a fresh registry id (spec's
// duplicate(src, new_id)); registry access before Bringup is fatal.
func (a *Application) Duplicate(srcID uint32) (uint32, error) {
	src, ok := a.comms[srcID]
	if !ok {
		return 0, fmt.Errorf("mpiapp: Duplicate: unknown communicator id %d", srcID)
	}
	id := a.nextID
	a.nextID++
	a.comms[id] = src.Duplicate(id)
	log.Debugf("duplicated communicator %s from %s", tag(a.rank, id), tag(a.rank, srcID))
	return id, nil
}

// Free closes and removes a communicator; freeing a reserved id (0-3) is
// a programming error per spec.md §4.6 ("all registry access requires
// initialized state; all errors are fatal").
func (a *Application) Free(id uint32) error {
	if id <= mpi.IDSelf {
		return fmt.Errorf("mpiapp: Free: id %d is reserved", id)
	}
	c, ok := a.comms[id]
	if !ok {
		return fmt.Errorf("mpiapp: Free: unknown communicator id %d", id)
	}
	err := c.Close()
	delete(a.comms, id)
	log.Debugf("freed communicator %s", tag(a.rank, id))
	return err
}

// Communicator looks up a registered communicator by id.
func (a *Application) Communicator(id uint32) (*mpi.Communicator, error) {
	c, ok := a.comms[id]
	if !ok {
		return nil, fmt.Errorf("mpiapp: unknown communicator id %d", id)
	}
	return c, nil
}

// Barrier is a supplemented convenience over mpi.Barrier(app.World()).
func (a *Application) Barrier() coro.Operation[struct{}] {
	return mpi.Barrier(a.World())
}

// Run awaits each UserFunc sequentially in insertion order; each
// completes before the next begins. Stop() sets a flag checked between
// functions; an in-progress function still runs to its next cooperative
// yield before the run loop terminates.
func (a *Application) Run(fns []UserFunc) coro.Operation[struct{}] {
	out := coro.New[struct{}]()
	var idx int
	var step func()
	step = func() {
		if a.halt.ReqStop.IsClosed() || idx >= len(fns) {
			out.Terminate(struct{}{})
			return
		}
		fn := fns[idx]
		op := fn(a)
		op.OnComplete(func(_ *struct{}, fail *coro.Failure) {
			if fail != nil {
				out.TerminateFailure(fail)
				return
			}
			idx++
			step()
		})
	}
	step()
	return out
}

// Stop requests the run loop halt between user functions.
func (a *Application) Stop() { a.halt.ReqStop.Close() }

// Compute produces an Operation<void> terminated by a simulator event
// scheduled duration into the future, modeling CPU work (spec's
// compute(duration)).
func (a *Application) Compute(duration time.Duration) coro.Operation[struct{}] {
	out := coro.New[struct{}]()
	a.clock.Schedule(duration, func() {
		out.Terminate(struct{}{})
	})
	return out
}

// Shutdown closes every registered communicator before closing peer
// sockets directly, the graceful-shutdown ordering SPEC_FULL.md adds:
// communicators own sockets by reference, so closing them first avoids
// surfacing a shutdown error on a socket a communicator is still using.
func (a *Application) Shutdown() error {
	var firstErr error
	for id, c := range a.comms {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.comms, id)
	}
	for r, s := range a.sockets {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.sockets, r)
	}
	return firstErr
}

func protocolFailure(msg string) *coro.Failure {
	return coro.NewFailure("ERROR_PROTOCOL", 0, fmt.Errorf("%s", msg))
}
