package main

import (
	"os"

	"tomgalvin.uk/p31print/cmd"
)

func main() {
	os.Exit(cmd.Run())
}
