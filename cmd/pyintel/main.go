package main

import (
	"os"

	"pyintel/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
