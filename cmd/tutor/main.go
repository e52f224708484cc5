// Package main provides the mathtutor CLI: an interactive math tutoring shell, one-shot
// questions, conversation maintenance and an HTTP server exposing the relay and tutor APIs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
