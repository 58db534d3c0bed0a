// Command flinchd runs the embedded document database engine with its
// FLQL front end over stdin.
package main

import (
	"os"

	"flinch/cli"
	"flinch/common"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		common.Logger.WithError(err).Error("flinchd exited")
		os.Exit(1)
	}
}
