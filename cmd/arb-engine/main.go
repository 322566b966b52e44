package main

import (
	"github.com/arb-engine/cross-venue-arbitrage-engine/internal/cli"
)

func main() {
	cli.Execute()
}
