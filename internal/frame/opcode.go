package frame

// Opcode is the kind of a frame, as carried by the low 4 bits of the first header byte.
type Opcode uint8

const (
	OpContinuation       Opcode = iota // 0x0
	OpText                             // 0x1
	OpBinary                           // 0x2
	OpReservedNonControl               // 0x3..0x7
	OpClose                            // 0x8
	OpPing                             // 0x9
	OpPong                             // 0xA
	OpReservedControl                  // 0xB..0xF

	// OpUnset means the opcode was not parsed yet.
	OpUnset
)

// ParseOpcode maps the low nibble of b to an Opcode.
func ParseOpcode(b byte) Opcode {
	switch b & 0x0F {
	case 0x0:
		return OpContinuation
	case 0x1:
		return OpText
	case 0x2:
		return OpBinary
	case 0x8:
		return OpClose
	case 0x9:
		return OpPing
	case 0xA:
		return OpPong
	case 0x3, 0x4, 0x5, 0x6, 0x7:
		return OpReservedNonControl
	default:
		return OpReservedControl
	}
}

func (op Opcode) IsControl() bool {
	return op == OpClose || op == OpPing || op == OpPong || op == OpReservedControl
}

func (op Opcode) IsData() bool {
	return op == OpContinuation || op == OpText || op == OpBinary
}

func (op Opcode) IsReserved() bool {
	return op == OpReservedControl || op == OpReservedNonControl
}

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpReservedNonControl:
		return "reserved-non-control"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	case OpReservedControl:
		return "reserved-control"
	default:
		return "unset"
	}
}
