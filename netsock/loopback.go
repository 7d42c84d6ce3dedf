package netsock

// Loopback sockets have no simhost.RawSocket at all: two same-rank
// endpoints share nothing, so a single Socket just bounces bytes through
// its own bounded cache, standing in for the local kernel loopback path
// spec.md §4.3 calls out as a same-rank shortcut.

// loopbackWrite appends as much of p as fits under cacheLimit, waking any
// pending receive through a same-tick scheduled event, and reports bytes
// accepted.
func (s *Socket) loopbackWrite(p []byte) int {
	room := s.cacheLimit - len(s.cache)
	if room <= 0 {
		return 0
	}
	n := len(p)
	if n > room {
		n = room
	}
	s.cache = append(s.cache, p[:n]...)
	if n > 0 && s.clock != nil {
		s.clock.ScheduleNow(s.pumpRecv)
	}
	return n
}

// drainLoopbackRecv reports whether head is now resolved.
func (s *Socket) drainLoopbackRecv(head *recvReq) bool {
	if len(s.cache) == 0 {
		if head.want == 0 {
			head.op.Terminate(head.acc)
			return true
		}
		return false
	}
	n := len(s.cache)
	if head.want > 0 {
		remaining := head.want - len(head.acc)
		if remaining < n {
			n = remaining
		}
	}
	head.acc = append(head.acc, s.cache[:n]...)
	s.cache = s.cache[n:]
	s.rxBytes += uint64(n)
	if s.clock != nil {
		s.clock.ScheduleNow(s.pumpSend)
	}
	if head.want == 0 || len(head.acc) >= head.want {
		head.op.Terminate(head.acc)
		return true
	}
	return false
}
