package ocppmsg

// Role identifies the OCPP-J wire role a message slot plays.
type Role int

const (
	// None marks a free slot.
	None Role = iota
	// Alloc is the transient state between allocation and initialization.
	Alloc
	// Call is an outbound or inbound request (OCPP-J MessageTypeId 2).
	Call
	// CallResult is a success response (OCPP-J MessageTypeId 3).
	CallResult
	// CallError is an error response (OCPP-J MessageTypeId 4).
	CallError
)

func (r Role) String() string {
	switch r {
	case None:
		return "NONE"
	case Alloc:
		return "ALLOC"
	case Call:
		return "CALL"
	case CallResult:
		return "CALLRESULT"
	case CallError:
		return "CALLERROR"
	default:
		return "UNKNOWN"
	}
}
