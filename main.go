package main

import "skald/cmd"

func main() {
	cmd.Execute()
}
