package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Several useful generators",
	Long:  `Generators for the command documentation`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
