package main

import (
	"fmt"
	"os"
)

var version = "<not set>"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "batgauge-report:", err)
		os.Exit(1)
	}
}
