package main

import "github.com/javanhut/helio-vcs/cli"

func main() {
	cli.Execute()
}
