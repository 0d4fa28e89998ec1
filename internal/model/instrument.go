package model

import "path/filepath"

// Strategy selects how program code reports its units to the tracker.
type Strategy string

const (
	// StrategyNone disables instrumentation.
	StrategyNone Strategy = "none"
	// StrategyEntry touches the declaring unit at the entry of every function.
	StrategyEntry Strategy = "entry"
	// StrategyInit touches every unit from a generated package init.
	StrategyInit Strategy = "init"
)

// MonitorModule is the module providing the runtime tracker.
const MonitorModule = "gorts.dev/pkg/gorts"

// MonitorImportPath is the import path of the runtime tracker.
const MonitorImportPath = MonitorModule + "/pkg/monitor"

// MonitorAlias is the local name instrumented files use for the tracker.
const MonitorAlias = "gortsmonitor"

// GeneratedDirective marks methods added by the instrumentor.
const GeneratedDirective = "//gorts:generated"

// TrackerCall names a tracker entry point.
type TrackerCall string

// Tracker entry points.
const (
	CallTouch     TrackerCall = "Touch"
	CallTestStart TrackerCall = "TestStart"
	CallTestEnd   TrackerCall = "TestEnd"
	CallRun       TrackerCall = "Run"
	CallConfigure TrackerCall = "Configure"
)

// Call is a tracker call to insert into instrumented code.
type Call struct {
	Func  TrackerCall
	Args  []string // rendered as string literals
	Defer bool
}

// Layout is the on-disk layout of the gorts output directory.
type Layout struct {
	Root Path
}

// Checksums is the fingerprint store file.
func (l Layout) Checksums() Path { return Path(filepath.Join(string(l.Root), "checksums.json")) }

// Affected is the file listing the names of the selected tests.
func (l Layout) Affected() Path { return Path(filepath.Join(string(l.Root), "affected.json")) }

// Dependencies is the directory of per-test dependency files.
func (l Layout) Dependencies() Path { return Path(filepath.Join(string(l.Root), "dependencies")) }

// Backup holds originals of every rewritten file.
func (l Layout) Backup() Path { return Path(filepath.Join(string(l.Root), "backup")) }
