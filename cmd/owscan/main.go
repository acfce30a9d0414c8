// Command owscan enumerates every 1-Wire bus of a board and prints the
// device ROM codes it finds. On hardware this is the quickest way to get
// the addresses for the sensors config section.
package main

import (
	"os"

	"modesp/hal"
	"modesp/hal/boards"
)

func main() {
	board := "rev_a_refrigerator"
	if len(os.Args) > 1 {
		board = os.Args[1]
	}

	def, ok := boards.ByName(board)
	if !ok {
		println("Error: owscan: unknown board:", board)
		os.Exit(1)
	}
	h := hal.New(def)
	if err := h.Init(); err != nil {
		println("Error: owscan: hal init:", err.Error())
		os.Exit(1)
	}

	for _, id := range h.OneWireBusIDs() {
		b, err := h.OneWireBus(id)
		if err != nil {
			println("Error: owscan:", id, err.Error())
			continue
		}
		devices := b.SearchDevices()
		println(id+":", len(devices), "device(s)")
		for _, addr := range devices {
			println("  " + addr.String())
		}
	}
}
