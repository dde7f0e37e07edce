// Package main is the entry point for hid-macro.
package main

import (
	"fmt"
	"os"

	"github.com/hid-macro/hid-macro/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
