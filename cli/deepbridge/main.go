package main

import (
	"os"

	deepbridgecmder "github.com/papercomputeco/deepbridge/cmd/deepbridge"
)

func main() {
	cmd := deepbridgecmder.NewDeepbridgeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
