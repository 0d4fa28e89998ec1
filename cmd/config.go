package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"gorts.dev/pkg/gorts/internal/controller"
	"gorts.dev/pkg/gorts/internal/domain"
	m "gorts.dev/pkg/gorts/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "gorts"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName         = "output"
	excludeFlagName        = "exclude"
	formatFlagName         = "format"
	verboseFlagName        = "verbose"
	granularityFlagName    = "granularity"
	frameworkFlagName      = "framework"
	strategyFlagName       = "strategy"
	smartFlagName          = "smart"
	monitorReplaceFlagName = "monitor-replace"
	monitorVersionFlagName = "monitor-version"
	runParallelFlagName    = "parallel"
	runTimeoutFlagName     = "timeout"
	debounceFlagName       = "debounce"
	dryRunFlagName         = "dry-run"

	outputConfigKey         = "output"
	excludeConfigKey        = "paths.exclude"
	formatConfigKey         = "format"
	granularityConfigKey    = "granularity"
	frameworkConfigKey      = "framework"
	strategyConfigKey       = "strategy"
	smartConfigKey          = "analysis.smart"
	monitorReplaceConfigKey = "instrument.monitor_replace"
	monitorVersionConfigKey = "instrument.monitor_version"
	runParallelConfigKey    = "run.parallel"
	runTimeoutConfigKey     = "run.timeout"
	debounceConfigKey       = "watch.debounce"

	defaultOutputDir      = domain.DefaultOutputDir
	defaultFormat         = string(controller.FormatTable)
	defaultGranularity    = string(m.GranularityMethod)
	defaultFramework      = string(m.FrameworkGoTest)
	defaultStrategy       = string(m.StrategyEntry)
	defaultSmart          = true
	defaultMonitorVersion = domain.DefaultMonitorVersion
	defaultRunParallel    = 1
	defaultRunTimeout     = "10m"
	defaultDebounce       = "500ms"

	envPrefix = "GORTS"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".gorts.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputConfigKey, defaultOutputDir)
	viper.SetDefault(excludeConfigKey, []string{})
	viper.SetDefault(formatConfigKey, defaultFormat)
	viper.SetDefault(granularityConfigKey, defaultGranularity)
	viper.SetDefault(frameworkConfigKey, defaultFramework)
	viper.SetDefault(strategyConfigKey, defaultStrategy)
	viper.SetDefault(smartConfigKey, defaultSmart)
	viper.SetDefault(monitorReplaceConfigKey, "")
	viper.SetDefault(monitorVersionConfigKey, defaultMonitorVersion)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(runTimeoutConfigKey, defaultRunTimeout)
	viper.SetDefault(debounceConfigKey, defaultDebounce)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// analysisConfig is the validated analysis and instrumentation configuration.
type analysisConfig struct {
	granularity    m.Granularity
	framework      m.FrameworkName
	strategy       m.Strategy
	mode           m.ChecksumMode
	monitorReplace string
	monitorVersion string
}

func loadAnalysisConfig() (analysisConfig, error) {
	cfg := analysisConfig{
		granularity:    m.Granularity(strings.ToLower(viper.GetString(granularityConfigKey))),
		framework:      m.FrameworkName(strings.ToLower(viper.GetString(frameworkConfigKey))),
		strategy:       m.Strategy(strings.ToLower(viper.GetString(strategyConfigKey))),
		mode:           m.ModeExact,
		monitorReplace: viper.GetString(monitorReplaceConfigKey),
		monitorVersion: viper.GetString(monitorVersionConfigKey),
	}

	if viper.GetBool(smartConfigKey) {
		cfg.mode = m.ModeSmart
	}

	switch cfg.granularity {
	case m.GranularityClass, m.GranularityMethod:
	default:
		return cfg, fmt.Errorf("invalid %s %q: want %q or %q", granularityConfigKey, cfg.granularity, m.GranularityClass, m.GranularityMethod)
	}

	switch cfg.strategy {
	case m.StrategyNone, m.StrategyEntry, m.StrategyInit:
	default:
		return cfg, fmt.Errorf("invalid %s %q: want %q, %q or %q", strategyConfigKey, cfg.strategy, m.StrategyNone, m.StrategyEntry, m.StrategyInit)
	}

	return cfg, nil
}

func parseFormat(value string) (controller.Format, error) {
	format := controller.Format(strings.ToLower(strings.TrimSpace(value)))

	switch format {
	case "":
		return controller.FormatTable, nil
	case controller.FormatTable, controller.FormatJSON, controller.FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid %s %q: want %q, %q or %q", formatConfigKey, value, controller.FormatTable, controller.FormatJSON, controller.FormatYAML)
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger. Every record carries the
// run id.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool, runID string) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler).With("run", runID)
	slog.SetDefault(globalLogger)
}
