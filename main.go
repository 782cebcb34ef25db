package main

import (
	"github.com/foomo/linkserver/cmd"
)

func main() {
	cmd.Execute()
}
