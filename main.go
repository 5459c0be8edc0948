package main

import (
	"os"

	"github.com/firefly-engineering/keypool/cmd"
	"github.com/firefly-engineering/keypool/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
