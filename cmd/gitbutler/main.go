package main

import (
	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/cmd"
)

func main() {
	cli.Exit(cmd.NewRootCmd())
}
