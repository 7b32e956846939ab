package main

import "github.com/danthegoodman1/icefields/cli"

func main() {
	cli.Execute()
}
