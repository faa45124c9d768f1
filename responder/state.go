package responder

import "sync/atomic"

// State is the reply selection state shared between the receive callback
// (writer) and the request callback and event loop (readers).
//
// The bus is half-duplex: a read never overlaps a write to the same target,
// so no two callbacks race on the same transaction. The fields are atomics
// only so that the callback and loop goroutines publish to each other.
type State struct {
	lastCommand atomic.Uint32
	selector    atomic.Uint32
}

// newState returns a State with the given initial selector.
func newState(initialSelector uint8) *State {
	s := &State{}
	s.selector.Store(uint32(initialSelector))
	return s
}

// Update stores cmd as the last command and selects its reply.
func (s *State) Update(cmd byte) {
	s.lastCommand.Store(uint32(cmd))
	s.selector.Store(uint32(Classify(cmd)))
}

// LastCommand returns the most recently received command byte.
func (s *State) LastCommand() byte {
	return byte(s.lastCommand.Load())
}

// Selector returns the current reply selector.
func (s *State) Selector() uint8 {
	return uint8(s.selector.Load())
}
