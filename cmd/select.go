package cmd

import (
	"github.com/spf13/cobra"
)

var selectDryRunFlag bool

// selectCmd represents the select command.
var selectCmd = newSelectCmd()

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select [paths...]",
		Short: "Select affected tests and instrument the module",
		Long:  selectLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectArgs, err := selectArgs(args, selectDryRunFlag)
			if err != nil {
				return err
			}

			return workflow.Select(cmd.Context(), selectArgs)
		},
	}

	cmd.Flags().BoolVar(&selectDryRunFlag, dryRunFlagName, false, "report the affected tests without saving fingerprints or instrumenting")

	return cmd
}

func init() {
	rootCmd.AddCommand(selectCmd)
}
