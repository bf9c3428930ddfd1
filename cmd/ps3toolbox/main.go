package main

import "github.com/matheusfillipe/ps3toolbox/cmd/ps3toolbox/cmd"

func main() {
	cmd.Execute()
}
