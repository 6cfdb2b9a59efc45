// Package constants provides named constants used throughout the triad codebase.
// This centralizes the default experiment parameters for both task variants.
package constants

// Session shape defaults
const (
	// DefaultTotalTrials is the number of trials in a session, catch trials included.
	DefaultTotalTrials = 75

	// DefaultObjectCount is the number of distinct stimulus objects.
	DefaultObjectCount = 75
)

// Degree-unit task defaults. Stimuli are rendered every AngleStep degrees.
const (
	// AngleStep is the spacing between rendered rotations in degrees.
	AngleStep = 5

	// MaxAngle is the largest rendered rotation in degrees.
	MaxAngle = 180

	// AngleSDNear is the standard deviation of the near comparison.
	AngleSDNear = 5.0

	// AngleSDFar is the standard deviation of the far comparison.
	AngleSDFar = 15.0

	// AngleMinSeparation is the minimum distance between near and far.
	AngleMinSeparation = 10
)

// Index-unit task defaults. Stimuli are addressed by rotation index instead
// of degrees.
const (
	// IndexStep is the spacing between rotation indices.
	IndexStep = 1

	// MaxIndex is the largest rotation index.
	MaxIndex = 35

	// IndexSDNear is the standard deviation of the near comparison.
	IndexSDNear = 3.0

	// IndexSDFar is the standard deviation of the far comparison.
	IndexSDFar = 6.0

	// IndexMinSeparation is the minimum distance between near and far.
	IndexMinSeparation = 2
)

// MaxSamplingAttempts bounds the near/far rejection loop before the
// deterministic fallback is used.
const MaxSamplingAttempts = 1000

// Storage locations
const (
	// DataDirName is the per-user data directory under $HOME.
	DataDirName = ".triad"

	// ConfigFileName is the YAML config file inside the data directory.
	ConfigFileName = "config.yaml"

	// DatabaseFileName is the SQLite session archive inside the data directory.
	DatabaseFileName = "sessions.db"

	// DefaultStimulusExt is appended to stimulus keys to form image file names.
	DefaultStimulusExt = ".png"
)
