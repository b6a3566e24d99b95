package main

import "github.com/M-24rjgc/cognical/cmd"

func main() {
	cmd.Execute()
}
