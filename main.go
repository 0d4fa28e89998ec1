// Package main is the entry point for the gorts CLI.
package main

import "gorts.dev/pkg/gorts/cmd"

func main() {
	cmd.Execute()
}
