package tcp

// Event is one input to the transition table.
type Event int

const (
	EventPassiveOpen Event = iota
	EventActiveOpen
	EventSend
	EventReceive
	EventClose
	EventAbort
	EventTimeout
)

func (e Event) String() string {
	switch e {
	case EventPassiveOpen:
		return "passive-open"
	case EventActiveOpen:
		return "active-open"
	case EventSend:
		return "send"
	case EventReceive:
		return "receive"
	case EventClose:
		return "close"
	case EventAbort:
		return "abort"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown-event"
	}
}

// SegmentFlags are the TCP control bits relevant to the transition table.
type SegmentFlags uint8

const (
	FlagSYN SegmentFlags = 1 << iota
	FlagACK
	FlagFIN
	FlagRST
)

func (f SegmentFlags) Has(flag SegmentFlags) bool {
	return f&flag != 0
}

// Segment is the minimal outbound-segment shape the transition table
// produces: which control bits to set, plus the sequence/ack numbers
// carried on the wire.
type Segment struct {
	Flags SegmentFlags
	Seq   uint32
	Ack   uint32
}
