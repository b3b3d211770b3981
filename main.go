package main

import "github.com/predmarket/predmarket/cmd"

func main() {
	cmd.Execute()
}
