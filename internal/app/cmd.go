package app

import (
	"github.com/spf13/cobra"

	"github.com/tidegate/tidegate/internal/cli"
	"github.com/tidegate/tidegate/internal/config"
)

func Tidegate() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "",
		Short: "Tidegate",
		Long:  "Tidegate – reverse proxy for the Bedrock game protocol",
		Run: func(cmd *cobra.Command, args []string) {
			Run(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	config.DefineFlags(cmd)
	cmd.AddCommand(cli.Version())
	cmd.AddCommand(cli.CheckChain())
	return cmd
}
