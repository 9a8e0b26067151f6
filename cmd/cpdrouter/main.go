package main

import "cpdrouter/pkg/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
