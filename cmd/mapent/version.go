package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/omniscale/mapent"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mapent %s %s (%s-%s)\n",
			mapent.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
