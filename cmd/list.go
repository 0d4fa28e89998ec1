package cmd

import (
	"github.com/spf13/cobra"

	"gorts.dev/pkg/gorts/internal/domain"
)

var listTextFlag bool

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List units, fingerprints and tests",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAnalysisConfig()
			if err != nil {
				return err
			}

			return workflow.List(cmd.Context(), domain.ListArgs{
				ModuleArgs:  moduleArgs(args),
				Framework:   cfg.framework,
				Granularity: cfg.granularity,
				Mode:        cfg.mode,
				Text:        listTextFlag,
			})
		},
	}

	cmd.Flags().BoolVar(&listTextFlag, "text", false, "print the serialization each fingerprint is computed from")

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
