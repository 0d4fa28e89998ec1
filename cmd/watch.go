package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gorts.dev/pkg/gorts/internal/domain"
)

var watchDebounceFlag string

// watchCmd represents the watch command.
var watchCmd = newWatchCmd()

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Rerun the affected tests on every change",
		Long:  watchLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectArgs, err := selectArgs(args, false)
			if err != nil {
				return err
			}

			return workflow.Watch(cmd.Context(), domain.WatchArgs{
				RunArgs: domain.RunArgs{
					SelectArgs: selectArgs,
					Parallel:   viper.GetInt(runParallelConfigKey),
				},
				Debounce: viper.GetDuration(debounceConfigKey),
			})
		},
	}

	configureRunFlags(cmd)
	cmd.Flags().StringVar(&watchDebounceFlag, debounceFlagName, viper.GetString(debounceConfigKey), "quiet period after a change before the tests run")

	return cmd
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
