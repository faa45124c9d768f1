package responder

// Event is a notification handed from the transaction callbacks to the
// event loop. It carries no payload.
type Event uint8

const (
	// EventReceived follows a command byte written by the controller.
	EventReceived Event = iota
	// EventTransmitted follows a reply byte read by the controller.
	EventTransmitted
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventReceived:
		return "received"
	case EventTransmitted:
		return "transmitted"
	default:
		return "unknown"
	}
}
