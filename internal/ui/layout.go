package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutPathWidth is the minimum width to show reader log paths.
	LayoutPathWidth = 120
)

// Log display limits.
const (
	// LogTailLines is the number of application log lines read per refresh.
	LogTailLines = 500
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second
)

// Rows outside the log viewport besides the session panel.
const (
	chromeRows    = 2 // header and command bar
	logBoxRows    = 2 // log box borders
	logStatusRows = 1
	minLogRows    = 3
)
