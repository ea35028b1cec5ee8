package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tidegate/tidegate/internal/build"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Tidegate version information",
		Long:  `Print the version information of Tidegate`,
		Run: func(cmd *cobra.Command, args []string) {
			version()
		},
	}
}

func version() {
	fmt.Printf("Tidegate v%s (Go version: %s)\n", build.Version, runtime.Version())
}
