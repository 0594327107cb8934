package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mariuswilms/beanstalk/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()

		version := info.Version
		if version == "" {
			version = "dev"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "beanstalk %s (%s)\n", version, info.Platform)
		if info.Build != "" {
			fmt.Fprintf(out, "build %s on %s at %s\n", info.Build, info.Branch, info.BuildTime)
		}
		fmt.Fprintf(out, "%s %s\n", info.GoVersion, info.GoTag)

		return nil
	},
}
