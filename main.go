package main

import "github.com/zipfx/zipfx/cmd"

func main() {
	cmd.Execute()
}
