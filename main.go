package main

import (
	"os"

	"hostbackup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
