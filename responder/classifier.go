package responder

// Command bytes understood by the responder.
const (
	CmdFC = 0xFC // selects reply 1
	CmdF9 = 0xF9 // selects reply 2
	CmdDD = 0xDD // selects reply 3
	CmdDE = 0xDE // selects reply 4
)

// DefaultSelector is used for every command byte that is not recognized.
const DefaultSelector = 1

// Classify maps a received command byte to a reply selector.
// Every byte yields a selector in [1,4].
func Classify(cmd byte) uint8 {
	switch cmd {
	case CmdFC:
		return 1
	case CmdF9:
		return 2
	case CmdDD:
		return 3
	case CmdDE:
		return 4
	default:
		return DefaultSelector
	}
}
