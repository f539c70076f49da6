package main

import (
	"os"

	"github.com/jrsteele09/brokerauth/cmd/brokerauth/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
