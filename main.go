package main

import "linkprobe/cmd"

func main() {
	cmd.Execute()
}
