// Package main is the entry point for the QMS CLI.
package main

import (
	"qms/cli/cmd"
)

func main() {
	cmd.Execute()
}
