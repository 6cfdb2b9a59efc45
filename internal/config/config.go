// Package config provides unified configuration loading for triad.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/pathutil"
	"github.com/nvandessel/triad-choice/internal/sampling"
	"github.com/nvandessel/triad-choice/internal/sequence"
	"gopkg.in/yaml.v3"
)

// TriadConfig contains all triad configuration settings.
type TriadConfig struct {
	// Task selects the unit of stimulus angles: "angle" (degrees) or "index".
	Task constants.Task `json:"task" yaml:"task" validate:"oneof=angle index"`

	// TotalTrials is the number of trials per session, catch trials included.
	TotalTrials int `json:"total_trials" yaml:"total_trials" validate:"gte=1"`

	// ObjectCount is the number of stimulus objects, identified 1..ObjectCount.
	ObjectCount int `json:"object_count" yaml:"object_count" validate:"gte=1"`

	// Seed makes a session reproducible. 0 picks a fresh random seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Sampling holds the angle grid and near/far sampling constants.
	Sampling sampling.Params `json:"sampling" yaml:"sampling"`

	// CatchTrials is the static catch-trial table, consumed in order.
	CatchTrials []models.CatchTrial `json:"catch_trials" yaml:"catch_trials" validate:"dive"`

	// Stimuli locates the images the renderer shows.
	Stimuli StimuliConfig `json:"stimuli" yaml:"stimuli"`

	// Output contains settings for exported CSV files.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StimuliConfig configures stimulus key resolution.
type StimuliConfig struct {
	// Dir is the directory holding "{objectId}_rot_{angle}" images.
	Dir string `json:"dir" yaml:"dir"`

	// Extension is appended to stimulus keys, e.g. ".png".
	Extension string `json:"extension" yaml:"extension" validate:"omitempty,startswith=."`
}

// OutputConfig configures CSV export.
type OutputConfig struct {
	// Dir is where responses-<session>.csv files are written.
	Dir string `json:"dir" yaml:"dir"`
}

// LoggingConfig configures triad's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to decisions.jsonl in the data directory.
	// "trace" additionally logs every accepted near/far draw.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=info debug trace"`

	// Format selects the stderr log format: "text" (default) or "json".
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// envOverrides lists the environment variables that override file settings.
type envOverrides struct {
	Task        string  `env:"TRIAD_TASK"`
	TotalTrials *int    `env:"TRIAD_TOTAL_TRIALS"`
	ObjectCount *int    `env:"TRIAD_OBJECT_COUNT"`
	Seed        *uint64 `env:"TRIAD_SEED"`
	StimulusDir string  `env:"TRIAD_STIMULUS_DIR"`
	OutputDir   string  `env:"TRIAD_OUTPUT_DIR"`
	LogLevel    string  `env:"TRIAD_LOG_LEVEL"`
	LogFormat   string  `env:"TRIAD_LOG_FORMAT"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a TriadConfig for the degree-unit task.
func Default() *TriadConfig {
	cfg := &TriadConfig{
		TotalTrials: constants.DefaultTotalTrials,
		ObjectCount: constants.DefaultObjectCount,
		Stimuli: StimuliConfig{
			Dir:       "stimuli",
			Extension: constants.DefaultStimulusExt,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.ApplyTask(constants.TaskAngle)
	return cfg
}

// ForTask returns the defaults for task, or the angle defaults for an unknown task.
func ForTask(task constants.Task) *TriadConfig {
	cfg := Default()
	if task.Valid() {
		cfg.ApplyTask(task)
	}
	return cfg
}

// ApplyTask switches the config to task and resets the sampling constants
// and catch-trial table to that task's defaults.
func (c *TriadConfig) ApplyTask(task constants.Task) {
	c.Task = task
	switch task {
	case constants.TaskIndex:
		c.Sampling = sampling.Params{
			AngleStep:     constants.IndexStep,
			MaxAngle:      constants.MaxIndex,
			SDNear:        constants.IndexSDNear,
			SDFar:         constants.IndexSDFar,
			MinSeparation: constants.IndexMinSeparation,
			MaxAttempts:   constants.MaxSamplingAttempts,
		}
		c.CatchTrials = []models.CatchTrial{
			{ObjectID: 1, RefAngle: 0, NearAngle: 1, FarAngle: 6, CorrectOption: models.OptionNear},
			{ObjectID: 2, RefAngle: 9, NearAngle: 10, FarAngle: 18, CorrectOption: models.OptionNear},
		}
	default:
		c.Sampling = sampling.Params{
			AngleStep:     constants.AngleStep,
			MaxAngle:      constants.MaxAngle,
			SDNear:        constants.AngleSDNear,
			SDFar:         constants.AngleSDFar,
			MinSeparation: constants.AngleMinSeparation,
			MaxAttempts:   constants.MaxSamplingAttempts,
		}
		c.CatchTrials = []models.CatchTrial{
			{ObjectID: 1, RefAngle: 0, NearAngle: 5, FarAngle: 30, CorrectOption: models.OptionNear},
			{ObjectID: 2, RefAngle: 45, NearAngle: 50, FarAngle: 90, CorrectOption: models.OptionNear},
		}
	}
}

// DefaultDir returns the per-user data directory (~/.triad).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DataDirName), nil
}

// Load loads configuration from dir and environment variables.
// Order: defaults -> <dir>/config.yaml -> environment variables
func Load(dir string) (*TriadConfig, error) {
	config := Default()

	configPath := filepath.Join(dir, constants.ConfigFileName)
	if _, statErr := os.Stat(configPath); statErr == nil {
		fileConfig, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadPath loads an explicit config file and then applies environment
// variable overrides, like Load does for <dir>/config.yaml.
func LoadPath(path string) (*TriadConfig, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Settings the
// file leaves out take the defaults of the task it names.
func LoadFromFile(path string) (*TriadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var probe struct {
		Task constants.Task `yaml:"task"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", pathutil.RedactPath(path), err)
	}

	config := ForTask(probe.Task)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", pathutil.RedactPath(path), err)
	}

	if err := config.resolveDirs(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration as YAML to path.
func (c *TriadConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid. Field-level rules come
// from struct tags; rules spanning fields are checked by the sequence config.
func (c *TriadConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s%s (got %v)", fe.Namespace(), fe.Tag(), param(fe.Param()), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validating config: %w", err)
	}

	return c.SequenceConfig().Validate()
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// SequenceConfig extracts the parts of the config that shape a sequence.
func (c *TriadConfig) SequenceConfig() sequence.Config {
	return sequence.Config{
		TotalTrials: c.TotalTrials,
		ObjectCount: c.ObjectCount,
		Sampling:    c.Sampling,
		CatchTrials: c.CatchTrials,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *TriadConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if task := constants.Task(o.Task); o.Task != "" && task != config.Task {
		config.ApplyTask(task)
	}
	if o.TotalTrials != nil {
		config.TotalTrials = *o.TotalTrials
	}
	if o.ObjectCount != nil {
		config.ObjectCount = *o.ObjectCount
	}
	if o.Seed != nil {
		config.Seed = *o.Seed
	}
	if o.StimulusDir != "" {
		config.Stimuli.Dir = o.StimulusDir
	}
	if o.OutputDir != "" {
		config.Output.Dir = o.OutputDir
	}
	if o.LogLevel != "" {
		config.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		config.Logging.Format = o.LogFormat
	}
	return config.resolveDirs()
}

// resolveDirs expands ${VAR} references and a leading ~ in directory settings.
func (c *TriadConfig) resolveDirs() error {
	for _, dir := range []*string{&c.Stimuli.Dir, &c.Output.Dir} {
		expanded, err := pathutil.ExpandHome(expandEnvVars(*dir))
		if err != nil {
			return err
		}
		*dir = expanded
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
