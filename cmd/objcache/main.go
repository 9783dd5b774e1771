package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/objcache/objcache/cmd/objcache/commands"
)

func main() {
	root := &cobra.Command{
		Use:   "objcache",
		Short: "Redis object cache client tooling",
	}

	root.AddCommand(
		commands.NewStatusCommand(),
		commands.NewMeasurementsCommand(),
		commands.NewFlushCommand(),
		commands.NewVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
