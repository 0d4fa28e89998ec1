package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorts.dev/pkg/gorts/internal/controller"
	m "gorts.dev/pkg/gorts/internal/model"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "gorts", configBaseName)
	assert.Equal(t, "gorts.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputConfigKey)
	assert.Equal(t, "paths.exclude", excludeConfigKey)
	assert.Equal(t, "analysis.smart", smartConfigKey)
	assert.Equal(t, "run.parallel", runParallelConfigKey)
	assert.Equal(t, "run.timeout", runTimeoutConfigKey)
	assert.Equal(t, "instrument.monitor_replace", monitorReplaceConfigKey)
	assert.Equal(t, ".gorts", defaultOutputDir)
	assert.Equal(t, 1, defaultRunParallel)
	assert.Equal(t, "GORTS", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestLoadAnalysisConfig(t *testing.T) {
	cfg, err := loadAnalysisConfig()
	require.NoError(t, err)

	assert.Equal(t, m.GranularityMethod, cfg.granularity)
	assert.Equal(t, m.FrameworkGoTest, cfg.framework)
	assert.Equal(t, m.StrategyEntry, cfg.strategy)
	assert.Equal(t, m.ModeSmart, cfg.mode)
}

func TestLoadAnalysisConfig_FromEnv(t *testing.T) {
	t.Setenv("GORTS_GRANULARITY", "Class")
	t.Setenv("GORTS_ANALYSIS_SMART", "false")
	t.Setenv("GORTS_INSTRUMENT_MONITOR_REPLACE", "../gorts")

	cfg, err := loadAnalysisConfig()
	require.NoError(t, err)

	assert.Equal(t, m.GranularityClass, cfg.granularity)
	assert.Equal(t, m.ModeExact, cfg.mode)
	assert.Equal(t, "../gorts", cfg.monitorReplace)
}

func TestLoadAnalysisConfig_Invalid(t *testing.T) {
	t.Setenv("GORTS_STRATEGY", "everywhere")

	_, err := loadAnalysisConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "everywhere")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		value   string
		want    controller.Format
		wantErr bool
	}{
		{"", controller.FormatTable, false},
		{"table", controller.FormatTable, false},
		{"JSON", controller.FormatJSON, false},
		{" yaml ", controller.FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseFormat(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelInfo))
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logPath := filepath.Join(t.TempDir(), "gorts.log")

	configureLogger(logPath, true, "run-42")
	slog.Debug("Fingerprinted units", "count", 3)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "level=DEBUG")
	assert.Contains(t, string(data), "run=run-42")
	assert.Contains(t, string(data), "count=3")
}

func TestConfigureLogger_LevelFromConfig(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	viper.Set(logLevelKey, "warn")
	t.Cleanup(func() { viper.Set(logLevelKey, defaultLogLevel) })

	logPath := filepath.Join(t.TempDir(), "gorts.log")

	configureLogger(logPath, false, "run-43")
	slog.Info("hidden")
	slog.Warn("shown")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
