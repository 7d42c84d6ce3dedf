package refhost

import (
	"fmt"
	"sync"

	"github.com/glycerine/coronet/simhost"
)

// pipe is the shared byte buffer between two connected Sock endpoints.
type pipe struct {
	mut      sync.Mutex
	buf      []byte
	capacity int
	closed   bool
}

// Listener accepts inbound Connects addressed to it.
type Listener struct {
	host     *Host
	addr     string
	pending  []*Sock // dialers waiting to be accepted
	onAccept func()
}

// Registry is a tiny address book mapping addr -> *Listener, standing in
// for the network topology helpers spec.md declares out of scope.
type Registry struct {
	host      *Host
	listeners map[string]*Listener
}

func NewRegistry(host *Host) *Registry {
	return &Registry{host: host, listeners: make(map[string]*Listener)}
}

// NewSocket creates an unconnected, unbound Sock on this registry's host.
func (r *Registry) NewSocket() *Sock {
	return &Sock{host: r.host, reg: r}
}

// Sock is a minimal RawSocket: a byte-pipe with bounded capacity in each
// direction and simulator-scheduled wake-up callbacks, standing in for the
// real kernel-backed stream socket spec.md treats as external.
type Sock struct {
	host *Host
	reg  *Registry
	addr string

	peer *Sock
	tx   *pipe // bytes we've written, peer reads from this
	rx   *pipe // bytes peer wrote, we read from this

	listening bool
	connected bool
	closed    bool

	onAcceptCb   func()
	onConnectCb  func(simhost.SockErr)
	onSendRoomCb func()
	onRecvCb     func()
	onCloseCb    func(simhost.SockErr)
}

const defaultCapacity = 65536

func (s *Sock) Bind(addr string) error {
	s.addr = addr
	return nil
}

func (s *Sock) Listen() error {
	if s.listening || s.connected {
		return fmt.Errorf("refhost: socket already %s", map[bool]string{true: "listening", false: "connected"}[s.listening])
	}
	s.listening = true
	s.reg.listeners[s.addr] = &Listener{host: s.host, addr: s.addr, onAccept: s.onAcceptCb}
	return nil
}

func (s *Sock) Connect(addr string) simhost.SockErr {
	ln, ok := s.reg.listeners[addr]
	if !ok {
		return simhost.ErrNoRoute
	}
	shared1 := &pipe{capacity: defaultCapacity}
	shared2 := &pipe{capacity: defaultCapacity}

	peer := &Sock{host: s.host, reg: s.reg, addr: s.addr, connected: true, tx: shared2, rx: shared1}
	s.tx, s.rx, s.connected = shared1, shared2, true
	s.peer = peer
	peer.peer = s

	ln.pending = append(ln.pending, peer)
	s.host.ScheduleNow(func() {
		if ln.onAccept != nil {
			ln.onAccept()
		}
	})
	s.host.ScheduleNow(func() {
		if s.onConnectCb != nil {
			s.onConnectCb(simhost.ErrNone)
		}
	})
	return simhost.ErrNone
}

// Accept returns the next pending inbound connection for a listening
// socket, or (nil, "", ErrAgain) if none is queued yet.
func (s *Sock) Accept() (simhost.RawSocket, string, simhost.SockErr) {
	ln, ok := s.reg.listeners[s.addr]
	if !ok || len(ln.pending) == 0 {
		return nil, "", simhost.ErrAgain
	}
	conn := ln.pending[0]
	ln.pending = ln.pending[1:]
	return conn, conn.addr, simhost.ErrNone
}

// OnAccept registers the listener-side wake for inbound connects.
func (s *Sock) OnAccept(cb func()) {
	s.onAcceptCb = cb
	if ln, ok := s.reg.listeners[s.addr]; ok && s.listening {
		ln.onAccept = cb
	}
}
func (s *Sock) OnConnect(cb func(simhost.SockErr))  { s.onConnectCb = cb }
func (s *Sock) OnSendRoom(cb func())                { s.onSendRoomCb = cb }
func (s *Sock) OnRecvArrived(cb func())             { s.onRecvCb = cb }
func (s *Sock) OnClose(cb func(simhost.SockErr))    { s.onCloseCb = cb }

func (s *Sock) Send(p []byte) (int, simhost.SockErr) {
	if s.closed {
		return 0, simhost.ErrBadF
	}
	if s.tx == nil {
		return 0, simhost.ErrBadF
	}
	s.tx.mut.Lock()
	room := s.tx.capacity - len(s.tx.buf)
	if room <= 0 {
		s.tx.mut.Unlock()
		return 0, simhost.ErrAgain
	}
	n := len(p)
	if n > room {
		n = room
	}
	s.tx.buf = append(s.tx.buf, p[:n]...)
	s.tx.mut.Unlock()

	peer := s.peer
	s.host.ScheduleNow(func() {
		if peer != nil && peer.onRecvCb != nil {
			peer.onRecvCb()
		}
	})
	return n, simhost.ErrNone
}

func (s *Sock) Recv(p []byte) (int, simhost.SockErr) {
	if s.rx == nil {
		if s.closed {
			return 0, simhost.ErrShutdown
		}
		return 0, simhost.ErrBadF
	}
	s.rx.mut.Lock()
	if len(s.rx.buf) == 0 {
		closed := s.rx.closed
		s.rx.mut.Unlock()
		if closed {
			return 0, simhost.ErrShutdown
		}
		return 0, simhost.ErrAgain
	}
	n := len(p)
	if n > len(s.rx.buf) {
		n = len(s.rx.buf)
	}
	copy(p, s.rx.buf[:n])
	s.rx.buf = s.rx.buf[n:]
	s.rx.mut.Unlock()

	peer := s.peer
	s.host.ScheduleNow(func() {
		if peer != nil && peer.onSendRoomCb != nil {
			peer.onSendRoomCb()
		}
	})
	return n, simhost.ErrNone
}

func (s *Sock) TxAvailable() int {
	if s.tx == nil {
		return 0
	}
	s.tx.mut.Lock()
	defer s.tx.mut.Unlock()
	return s.tx.capacity - len(s.tx.buf)
}

func (s *Sock) RxAvailable() int {
	if s.rx == nil {
		return 0
	}
	s.rx.mut.Lock()
	defer s.rx.mut.Unlock()
	return len(s.rx.buf)
}

func (s *Sock) ShutdownSend() error {
	if s.tx != nil {
		s.tx.mut.Lock()
		s.tx.closed = true
		s.tx.mut.Unlock()
	}
	return nil
}

func (s *Sock) ShutdownRecv() error {
	if s.rx != nil {
		s.rx.mut.Lock()
		s.rx.closed = true
		s.rx.mut.Unlock()
	}
	return nil
}

func (s *Sock) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.ShutdownSend()
	s.ShutdownRecv()
	peer := s.peer
	s.host.ScheduleNow(func() {
		if peer != nil && peer.onCloseCb != nil {
			peer.onCloseCb(simhost.ErrShutdown)
		}
	})
	if s.onCloseCb != nil {
		s.onCloseCb(simhost.ErrNone)
	}
	return nil
}
