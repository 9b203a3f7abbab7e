package main

import "github.com/autoreel/autoreel/internal/cli"

func main() {
	cli.Main()
}
