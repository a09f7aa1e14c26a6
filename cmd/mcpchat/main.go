package main

import "github.com/isaacphi/mcpchat/internal/ui/cli"

func main() {
	cli.Execute()
}
