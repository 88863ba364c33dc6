package main

import "github.com/brioai/brio/cmd"

func main() {
	cmd.Execute()
}
