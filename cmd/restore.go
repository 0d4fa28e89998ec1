package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gorts.dev/pkg/gorts/internal/domain"
	m "gorts.dev/pkg/gorts/internal/model"
)

// restoreCmd represents the restore command.
var restoreCmd = newRestoreCmd()

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [path]",
		Short: "Restore the sources changed by select",
		Long: `Put back every file the last instrumentation changed and remove the files it
generated. The module is located from path (default: current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restoreArgs := domain.RestoreArgs{Output: m.Path(viper.GetString(outputConfigKey))}
			if len(args) == 1 {
				restoreArgs.Path = m.Path(args[0])
			}

			return workflow.Restore(cmd.Context(), restoreArgs)
		},
	}
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
