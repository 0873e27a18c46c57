package main

import (
	"os"

	"github.com/bebsworthy/testapps/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
