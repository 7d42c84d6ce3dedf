// Package pfc implements the Priority Flow Control control plane (C7):
// the 20-byte PFC PAUSE/RESUME wire header, the Infiniband Base
// Transport Header layout interoperability demands (spec.md §6), the
// watermark trigger that emits PAUSE/RESUME frames from queue depth, and
// the per-device pause-timer state machine that decays them. The wire
// struct uses host-byte-copy layout with fixed field offsets and no
// reflection, and the pause timer's wake scheduling reuses
// simhost/refhost/clock.go's heap-based timerHeap pattern.
package pfc

import "encoding/binary"

// NumPriorities is the number of PFC priority classes (spec.md §3/§6:
// "8 x 16-bit pause-time-in-quanta values").
const NumPriorities = 8

const (
	// Opcode identifies a PFC PAUSE/RESUME frame on the wire.
	Opcode uint16 = 0x0101
	// HeaderSize is the fixed PFC header size before padding.
	HeaderSize = 20
	// PaddingSize pads a PFC frame to its configured size.
	PaddingSize = 26
	// FrameSize is the full padded PFC frame size.
	FrameSize = HeaderSize + PaddingSize

	// MulticastMAC is the PFC frame's destination MAC address.
	MulticastMAC = "01:80:C2:00:00:01"
	// EtherType is the PFC frame's MAC protocol number.
	EtherType uint16 = 0x8808
)

// Header is the 20-byte PFC PAUSE/RESUME header: a priority mask and one
// pause-time-in-quanta value per priority, byte-copied in host order
// because it never crosses outside the simulation (spec.md §3, §6).
type Header struct {
	Opcode       uint16
	PriorityMask uint16
	PauseTime    [NumPriorities]uint16
}

// Encode writes h into a FrameSize-byte buffer, opcode/mask/pause-time
// followed by zero padding.
func (h Header) Encode() []byte {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.Opcode)
	binary.LittleEndian.PutUint16(buf[2:4], h.PriorityMask)
	for i := 0; i < NumPriorities; i++ {
		binary.LittleEndian.PutUint16(buf[4+2*i:6+2*i], h.PauseTime[i])
	}
	return buf
}

// DecodeHeader reads a Header out of the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) Header {
	var h Header
	h.Opcode = binary.LittleEndian.Uint16(buf[0:2])
	h.PriorityMask = binary.LittleEndian.Uint16(buf[2:4])
	for i := 0; i < NumPriorities; i++ {
		h.PauseTime[i] = binary.LittleEndian.Uint16(buf[4+2*i : 6+2*i])
	}
	return h
}

// HasPriority reports whether priority p's mask bit is set.
func (h Header) HasPriority(p int) bool {
	return h.PriorityMask&(1<<uint(p)) != 0
}

// PauseAll builds a PAUSE frame with mask set for every priority in
// priorities and pause-time saturated to 0xFFFF, per the watermark
// trigger's "pause-time field saturated" rule.
func PauseAll(priorities []int) Header {
	h := Header{Opcode: Opcode}
	for _, p := range priorities {
		h.PriorityMask |= 1 << uint(p)
		h.PauseTime[p] = 0xFFFF
	}
	return h
}

// ResumeAll builds a RESUME frame: mask set, pause-time 0x0000.
func ResumeAll(priorities []int) Header {
	h := Header{Opcode: Opcode}
	for _, p := range priorities {
		h.PriorityMask |= 1 << uint(p)
		h.PauseTime[p] = 0x0000
	}
	return h
}
