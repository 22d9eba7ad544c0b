package main

import "deepsearch/cmd"

func main() {
	cmd.Execute()
}
