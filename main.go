package main

import "github.com/crossvenue/arb/cmd"

func main() {
	cmd.Execute()
}
