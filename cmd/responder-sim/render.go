package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/table"

	"github.com/binkynet/BinkyHardware/I2CResponder/activity"
	"github.com/binkynet/BinkyHardware/I2CResponder/responder"
)

// exchange is one command write followed by a read.
type exchange struct {
	Command byte
	Reply   byte
}

// RenderReplyTable formats the reply table, marking the current selection.
func RenderReplyTable(t responder.ReplyTable, selector uint8) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(table.Row{"Selector", "Reply", "Current"})
	for i, b := range t {
		current := ""
		if uint8(i) == selector {
			current = "*"
		}
		w.AppendRow(table.Row{i, hex(b), current})
	}
	return w.Render()
}

// RenderExchanges formats a list of write/read pairs.
func RenderExchanges(rows []exchange) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(table.Row{"Command", "Selector", "Reply"})
	for _, r := range rows {
		w.AppendRow(table.Row{hex(r.Command), responder.Classify(r.Command), hex(r.Reply)})
	}
	return w.Render()
}

// RenderStats formats the responder counters.
func RenderStats(st responder.Stats, written uint64, monitor *activity.Monitor) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(table.Row{"Counter", "Value"})
	w.AppendRow(table.Row{"Commands received", st.Received})
	w.AppendRow(table.Row{"Replies transmitted", st.Transmitted})
	w.AppendRow(table.Row{"Bytes on bus", written})
	w.AppendRow(table.Row{"Notifications dropped", st.Dropped})
	w.AppendRow(table.Row{"Notifications queued", st.Queued})
	if monitor != nil {
		w.AppendRow(table.Row{"Activity bursts", monitor.Bursts()})
	}
	return w.Render()
}

func hex(b byte) string {
	return fmt.Sprintf("0x%02x", b)
}
