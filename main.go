package main

import (
	"os"

	"b2backup/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
