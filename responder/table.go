package responder

import "fmt"

// TableSize is the number of entries in a ReplyTable.
const TableSize = 5

// ReplyTable holds the candidate reply bytes, indexed by reply selector.
type ReplyTable [TableSize]byte

// DefaultReplyTable is the reply table the responder ships with.
var DefaultReplyTable = ReplyTable{0x00, 0x04, 0x02, 0x00, 0x00}

// Lookup returns the reply byte for the given selector.
// A selector outside the table is a programming error and panics.
func (t *ReplyTable) Lookup(selector uint8) byte {
	if int(selector) >= len(t) {
		panic(fmt.Sprintf("reply selector %d out of range [0,%d]", selector, len(t)-1))
	}
	return t[selector]
}
