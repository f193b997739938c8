package main

import "devstack/internal/cli"

func main() {
	cli.Execute()
}
