// Package main is the entry point for the tlc application
package main

import (
	"github.com/clinstream/tlc/cmd"
)

func main() {
	cmd.Execute()
}
