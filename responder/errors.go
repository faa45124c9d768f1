package responder

import "errors"

var (
	// ErrInit indicates the responder could not acquire a resource it needs
	// before serving the bus.
	ErrInit = errors.New("responder initialization failed")

	// ErrReplyFault indicates a reply byte could not be written to the bus.
	// The responder is out of step with the controller and must stop.
	ErrReplyFault = errors.New("reply transmission fault")
)
