package main

import "github.com/talnish/iiswc21-rwalk/internal/cli"

func main() {
	cli.Main()
}
