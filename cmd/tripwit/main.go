// Command tripwit works with trip text and .tripwit files offline: it runs
// the itinerary and booking parsers and inspects or converts snapshots.
package main

import (
	"log"

	"github.com/pkordes/tripwit/internal/commands"
)

func main() {
	if err := commands.New().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
