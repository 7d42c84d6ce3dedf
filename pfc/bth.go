package pfc

// Infiniband opcodes referenced by the wire format spec.md §6/§GLOSSARY
// enumerates.
const (
	OpRCSendFirst      uint8 = 0x00
	OpRCSendLast       uint8 = 0x02
	OpRCSendOnly       uint8 = 0x04
	OpRCRDMAWriteFirst uint8 = 0x06
	OpRCRDMAWriteOnly  uint8 = 0x0A
	OpRCRDMAReadReq    uint8 = 0x0C
	OpRCAcknowledge    uint8 = 0x11
)

// BTHSize is the fixed Infiniband Base Transport Header size in bytes.
const BTHSize = 12

// BTH is the Infiniband Base Transport Header (spec.md §6): a 12-byte,
// bit-packed header. Fields narrower than a byte are packed MSB-first
// within their containing byte, matching the Infiniband spec's bit
// ordering.
type BTH struct {
	Opcode                uint8
	SolicitedEvent        bool
	MigrationRequest      bool
	PadCount              uint8 // 2 bits
	TransportHeaderVer    uint8 // 4 bits
	PartitionKey          uint16
	ECN                   uint8 // 2 bits
	DestQPN               uint32 // 24 bits
	AckRequest            bool
	PacketSequenceNumber  uint32 // 24 bits
}

// Encode packs the header into a 12-byte buffer per spec.md §6's layout:
// opcode (1B); {solicited_event:1, migration_request:1, pad_count:2,
// transport_header_version:4} (1B); partition_key (2B); {ecn:2,
// reserved:6} (1B); destination_qpn (3B, bit-packed with a 1-bit
// ack-request flag and 7 reserved bits at byte 8); PSN (3B).
func (b BTH) Encode() []byte {
	buf := make([]byte, BTHSize)
	buf[0] = b.Opcode

	var flags uint8
	if b.SolicitedEvent {
		flags |= 1 << 7
	}
	if b.MigrationRequest {
		flags |= 1 << 6
	}
	flags |= (b.PadCount & 0x3) << 4
	flags |= b.TransportHeaderVer & 0xF
	buf[1] = flags

	buf[2] = byte(b.PartitionKey >> 8)
	buf[3] = byte(b.PartitionKey)

	buf[4] = (b.ECN & 0x3) << 6

	qpn := b.DestQPN & 0x00FFFFFF
	buf[5] = byte(qpn >> 16)
	buf[6] = byte(qpn >> 8)
	buf[7] = byte(qpn)

	var ackByte uint8
	if b.AckRequest {
		ackByte = 1 << 7
	}
	buf[8] = ackByte

	psn := b.PacketSequenceNumber & 0x00FFFFFF
	buf[9] = byte(psn >> 16)
	buf[10] = byte(psn >> 8)
	buf[11] = byte(psn)
	return buf
}

// DecodeBTH reads a BTH out of the first BTHSize bytes of buf.
func DecodeBTH(buf []byte) BTH {
	var b BTH
	b.Opcode = buf[0]
	flags := buf[1]
	b.SolicitedEvent = flags&(1<<7) != 0
	b.MigrationRequest = flags&(1<<6) != 0
	b.PadCount = (flags >> 4) & 0x3
	b.TransportHeaderVer = flags & 0xF

	b.PartitionKey = uint16(buf[2])<<8 | uint16(buf[3])
	b.ECN = (buf[4] >> 6) & 0x3

	b.DestQPN = uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	b.AckRequest = buf[8]&(1<<7) != 0

	b.PacketSequenceNumber = uint32(buf[9])<<16 | uint32(buf[10])<<8 | uint32(buf[11])
	return b
}
