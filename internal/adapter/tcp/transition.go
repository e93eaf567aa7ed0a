package tcp

// Step is the pure transition function spec.md §4.1 requires: given a
// state and an event (with, for EventReceive, the incoming segment's
// flags), it returns the new state and an optional outbound segment.
// ok reports whether the pair had a defined transition; when ok is
// false the caller should drop the event and count it, leaving state
// unchanged.
func Step(state State, event Event, in *Segment) (next State, out *Segment, ok bool) {
	if event == EventReceive && in != nil && in.Flags.Has(FlagRST) {
		return Closed, nil, true
	}
	if event == EventAbort {
		return Closed, &Segment{Flags: FlagRST}, true
	}

	switch state {
	case Closed:
		switch event {
		case EventPassiveOpen:
			return Listen, nil, true
		case EventActiveOpen:
			return SynSent, &Segment{Flags: FlagSYN}, true
		}

	case Listen:
		switch event {
		case EventReceive:
			if in != nil && in.Flags.Has(FlagSYN) {
				return SynReceived, &Segment{Flags: FlagSYN | FlagACK}, true
			}
		case EventClose:
			return Closed, nil, true
		}

	case SynSent:
		switch event {
		case EventReceive:
			if in != nil && in.Flags.Has(FlagSYN) && in.Flags.Has(FlagACK) {
				return Established, &Segment{Flags: FlagACK}, true
			}
			if in != nil && in.Flags.Has(FlagSYN) {
				return SynReceived, &Segment{Flags: FlagSYN | FlagACK}, true
			}
		case EventClose:
			return Closed, nil, true
		}

	case SynReceived:
		switch event {
		case EventReceive:
			if in != nil && in.Flags.Has(FlagACK) {
				return Established, nil, true
			}
		case EventClose:
			return FinWait1, &Segment{Flags: FlagFIN}, true
		}

	case Established:
		switch event {
		case EventClose:
			return FinWait1, &Segment{Flags: FlagFIN}, true
		case EventSend:
			return Established, &Segment{}, true
		case EventReceive:
			if in != nil && in.Flags.Has(FlagFIN) {
				return CloseWait, &Segment{Flags: FlagACK}, true
			}
			return Established, nil, true
		}

	case FinWait1:
		if event == EventReceive && in != nil {
			switch {
			case in.Flags.Has(FlagFIN) && in.Flags.Has(FlagACK):
				return TimeWait, &Segment{Flags: FlagACK}, true
			case in.Flags.Has(FlagACK):
				return FinWait2, nil, true
			case in.Flags.Has(FlagFIN):
				return Closing, &Segment{Flags: FlagACK}, true
			}
		}

	case FinWait2:
		if event == EventReceive && in != nil && in.Flags.Has(FlagFIN) {
			return TimeWait, &Segment{Flags: FlagACK}, true
		}

	case CloseWait:
		if event == EventClose {
			return LastAck, &Segment{Flags: FlagFIN}, true
		}

	case Closing:
		if event == EventReceive && in != nil && in.Flags.Has(FlagACK) {
			return TimeWait, nil, true
		}

	case LastAck:
		if event == EventReceive && in != nil && in.Flags.Has(FlagACK) {
			return Closed, nil, true
		}

	case TimeWait:
		if event == EventTimeout {
			return Closed, nil, true
		}
	}

	return state, nil, false
}
