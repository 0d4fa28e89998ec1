package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gorts.dev/pkg/gorts/internal/domain"
)

var runParallelFlag int
var runTimeoutFlag string
var runDryRunFlag bool
var runKeepFlag bool

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run the affected tests",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectArgs, err := selectArgs(args, runDryRunFlag)
			if err != nil {
				return err
			}

			return workflow.Run(cmd.Context(), domain.RunArgs{
				SelectArgs: selectArgs,
				Parallel:   viper.GetInt(runParallelConfigKey),
				Keep:       runKeepFlag,
			})
		},
	}

	configureRunFlags(cmd)
	cmd.Flags().BoolVar(&runDryRunFlag, dryRunFlagName, false, "report the affected tests without running them")
	cmd.Flags().BoolVar(&runKeepFlag, "keep", false, "leave the sources instrumented after the run")

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// configureRunFlags adds the go test execution flags shared by run and watch.
// They are bound to the configuration by bindCommandFlags once the command
// being executed is known.
func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of packages tested in parallel")
	cmd.Flags().StringVar(&runTimeoutFlag, runTimeoutFlagName, viper.GetString(runTimeoutConfigKey), "timeout of a single go test invocation")
}
