package main

import "github.com/kozaktomas/facegraph/cmd"

func main() {
	cmd.Execute()
}
