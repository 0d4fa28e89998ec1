// Package cmd provides the root command and CLI setup for gorts.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gorts.dev/pkg/gorts/internal/adapter"
	"gorts.dev/pkg/gorts/internal/controller"
	"gorts.dev/pkg/gorts/internal/domain"
	m "gorts.dev/pkg/gorts/internal/model"
)

var goFileAdapter adapter.GoFileAdapter
var fsAdapter adapter.SourceFSAdapter
var goModAdapter adapter.GoModAdapter
var fingerprintStore adapter.FingerprintStore
var dependencyStore adapter.DependencyStore
var fileWatcher adapter.FileWatcher
var testAdapter adapter.TestRunnerAdapter
var fingerprinter domain.Fingerprinter
var analyzer domain.Analyzer
var instrumentor domain.Instrumentor
var orchestrator domain.Orchestrator
var workflow domain.Workflow
var ui controller.UI

// runID identifies the current invocation in logs and reports.
var runID string

// outputDirFlag is a root-level flag shared by commands that read or write
// the gorts output directory.
var outputDirFlag string

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

var formatFlag string
var verboseFlag bool
var granularityFlag string
var frameworkFlag string
var strategyFlag string
var smartFlag bool
var monitorReplaceFlag string
var monitorVersionFlag string

const pathPatternsHelp = `Supports Go-style path patterns:
  - ./...          recursively scan current directory
  - ./pkg/...      recursively scan pkg directory
  - ./cmd ./pkg    scan multiple directories`

const rootLongDescription = `Gorts is a regression test selection tool for Go modules. It fingerprints
types and files, records which of them every test executes and reruns only
the tests whose dependencies changed since the last run.

` + pathPatternsHelp

const selectLongDescription = `Select the tests affected by changes and instrument the module so that
running them records their dependencies. Run 'gorts restore' afterwards.

` + pathPatternsHelp

const runLongDescription = `Select the affected tests, run them with go test and restore the sources.

` + pathPatternsHelp

const listLongDescription = `List units with their fingerprints and the discovered tests with their
recorded dependencies, without changing anything.

` + pathPatternsHelp

const watchLongDescription = `Run the affected tests, then run them again whenever a Go file changes.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gorts",
		Short:        "Go regression test selection tool",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bindCommandFlags(cmd)

			runID = uuid.NewString()
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey), runID)

			if workflow != nil {
				return nil
			}

			return wireDependencies(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&outputDirFlag, outputFlagName, "o",
			viper.GetString(outputConfigKey),
			"directory for fingerprints, dependencies and backups, relative to the module root",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().StringVar(&formatFlag, formatFlagName, viper.GetString(formatConfigKey), "output format: table, json or yaml")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(formatFlagName), formatConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVarP(&granularityFlag, granularityFlagName, "g", viper.GetString(granularityConfigKey), "test granularity: class or method")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(granularityFlagName), granularityConfigKey)

	cmd.PersistentFlags().StringVar(&frameworkFlag, frameworkFlagName, viper.GetString(frameworkConfigKey), "test framework: gotest or testify")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(frameworkFlagName), frameworkConfigKey)

	cmd.PersistentFlags().StringVar(&strategyFlag, strategyFlagName, viper.GetString(strategyConfigKey), "instrumentation strategy: entry, init or none")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(strategyFlagName), strategyConfigKey)

	cmd.PersistentFlags().BoolVar(&smartFlag, smartFlagName, viper.GetBool(smartConfigKey), "ignore source positions in fingerprints")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(smartFlagName), smartConfigKey)

	cmd.PersistentFlags().StringVar(&monitorReplaceFlag, monitorReplaceFlagName, viper.GetString(monitorReplaceConfigKey), "replace directive for the monitor module in instrumented go.mod files")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(monitorReplaceFlagName), monitorReplaceConfigKey)

	cmd.PersistentFlags().StringVar(&monitorVersionFlag, monitorVersionFlagName, viper.GetString(monitorVersionConfigKey), "version of the monitor module required by instrumented go.mod files")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(monitorVersionFlagName), monitorVersionConfigKey)
}

// wireDependencies builds the workflow and everything it depends on from the
// current configuration.
func wireDependencies(cmd *cobra.Command) error {
	format, err := parseFormat(viper.GetString(formatConfigKey))
	if err != nil {
		return err
	}

	fsAdapter = adapter.NewLocalSourceFSAdapter()
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	goModAdapter = adapter.NewLocalGoModAdapter()
	fingerprintStore = adapter.NewLocalFingerprintStore()
	dependencyStore = adapter.NewLocalDependencyStore()
	fileWatcher = adapter.NewLocalFileWatcher()
	testAdapter = adapter.NewLocalTestRunnerAdapter(viper.GetDuration(runTimeoutConfigKey))
	fingerprinter = domain.NewFingerprinter()
	analyzer = domain.NewAnalyzer(goFileAdapter, fingerprintStore, dependencyStore, fingerprinter)
	instrumentor = domain.NewInstrumentor(fsAdapter, goFileAdapter, goModAdapter, adapter.NewLocalCodeInstrumentor(fsAdapter))
	orchestrator = domain.NewOrchestrator(testAdapter, dependencyStore)
	ui = controller.NewUI(cmd, controller.IsTTY(cmd.OutOrStdout()), format)
	workflow = domain.NewWorkflow(
		fsAdapter,
		goFileAdapter,
		goModAdapter,
		dependencyStore,
		fileWatcher,
		ui,
		analyzer,
		instrumentor,
		orchestrator,
		fingerprinter,
	)

	return nil
}

// commandFlagKeys maps flags defined by several subcommands to their config
// keys.
var commandFlagKeys = map[string]string{
	runParallelFlagName: runParallelConfigKey,
	runTimeoutFlagName:  runTimeoutConfigKey,
	debounceFlagName:    debounceConfigKey,
}

// bindCommandFlags binds the flags of the executed command listed in
// commandFlagKeys.
func bindCommandFlags(cmd *cobra.Command) {
	for name, key := range commandFlagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			bindFlagToConfig(flag, key)
		}
	}
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the running command, which still restores the sources.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// moduleArgs collects the module location shared by all commands.
func moduleArgs(args []string) domain.ModuleArgs {
	return domain.ModuleArgs{
		Paths:   parsePaths(args),
		Exclude: viper.GetStringSlice(excludeConfigKey),
		Output:  m.Path(viper.GetString(outputConfigKey)),
	}
}

// selectArgs builds the select arguments from the configuration.
func selectArgs(args []string, dryRun bool) (domain.SelectArgs, error) {
	cfg, err := loadAnalysisConfig()
	if err != nil {
		return domain.SelectArgs{}, err
	}

	return domain.SelectArgs{
		ModuleArgs:     moduleArgs(args),
		RunID:          runID,
		Framework:      cfg.framework,
		Granularity:    cfg.granularity,
		Mode:           cfg.mode,
		Strategy:       cfg.strategy,
		DryRun:         dryRun,
		MonitorVersion: cfg.monitorVersion,
		MonitorReplace: cfg.monitorReplace,
	}, nil
}
