// Package main is the entry point of the qnet simulator.
package main

import "github.com/sarchlab/qnet/cmd"

func main() {
	cmd.Execute()
}
