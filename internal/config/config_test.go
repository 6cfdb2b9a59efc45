package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/sequence"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Task != constants.TaskAngle {
		t.Errorf("expected Task 'angle', got '%s'", config.Task)
	}
	if config.TotalTrials != 75 || config.ObjectCount != 75 {
		t.Errorf("expected 75 trials and objects, got %d/%d", config.TotalTrials, config.ObjectCount)
	}
	if config.Seed != 0 {
		t.Errorf("expected Seed 0, got %d", config.Seed)
	}

	p := config.Sampling
	if p.AngleStep != 5 || p.MaxAngle != 180 || p.SDNear != 5 || p.SDFar != 15 || p.MinSeparation != 10 {
		t.Errorf("unexpected angle sampling defaults: %+v", p)
	}
	if len(config.CatchTrials) != 2 {
		t.Fatalf("expected 2 catch trials, got %d", len(config.CatchTrials))
	}
	if config.CatchTrials[1].RefAngle != 45 || config.CatchTrials[1].CorrectOption != models.OptionNear {
		t.Errorf("unexpected catch trial: %+v", config.CatchTrials[1])
	}

	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestApplyTask_Index(t *testing.T) {
	config := Default()
	config.ApplyTask(constants.TaskIndex)

	p := config.Sampling
	if p.AngleStep != 1 || p.MaxAngle != 35 || p.SDNear != 3 || p.SDFar != 6 || p.MinSeparation != 2 {
		t.Errorf("unexpected index sampling defaults: %+v", p)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("index config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
total_trials: 20
object_count: 30
seed: 42

sampling:
  sd_far: 20
  min_separation: 15

catch_trials:
  - object_id: 3
    ref_angle: 90
    near_angle: 95
    far_angle: 140
    correct_option: 1

stimuli:
  dir: /data/stimuli

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.TotalTrials != 20 || config.ObjectCount != 30 || config.Seed != 42 {
		t.Errorf("unexpected shape: %d trials, %d objects, seed %d", config.TotalTrials, config.ObjectCount, config.Seed)
	}
	if config.Sampling.SDFar != 20 || config.Sampling.MinSeparation != 15 {
		t.Errorf("sampling overrides not applied: %+v", config.Sampling)
	}
	if config.Sampling.SDNear != 5 || config.Sampling.AngleStep != 5 {
		t.Errorf("sampling defaults lost: %+v", config.Sampling)
	}
	if len(config.CatchTrials) != 1 || config.CatchTrials[0].ObjectID != 3 {
		t.Errorf("catch table not replaced: %+v", config.CatchTrials)
	}
	if config.Stimuli.Dir != "/data/stimuli" || config.Stimuli.Extension != ".png" {
		t.Errorf("unexpected stimuli config: %+v", config.Stimuli)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadFromFile_IndexTaskDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("task: index\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Sampling.MaxAngle != constants.MaxIndex || config.Sampling.AngleStep != 1 {
		t.Errorf("index defaults not applied: %+v", config.Sampling)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("index config should be valid: %v", err)
	}
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TRIAD_TEST_ROOT", "/experiments")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "stimuli:\n  dir: ${TRIAD_TEST_ROOT}/images\noutput:\n  dir: ${TRIAD_TEST_ROOT}/out\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Stimuli.Dir != "/experiments/images" {
		t.Errorf("Stimuli.Dir = %q", config.Stimuli.Dir)
	}
	if config.Output.Dir != "/experiments/out" {
		t.Errorf("Output.Dir = %q", config.Output.Dir)
	}
}

func TestLoadFromFile_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("stimuli:\n  dir: ~/images\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if want := filepath.Join(home, "images"); config.Stimuli.Dir != want {
		t.Errorf("Stimuli.Dir = %q, want %q", config.Stimuli.Dir, want)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("total_trials: [oops"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_NoFile(t *testing.T) {
	config, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.TotalTrials != constants.DefaultTotalTrials {
		t.Errorf("expected default trials, got %d", config.TotalTrials)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("total_trials: 30\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TRIAD_TOTAL_TRIALS", "12")
	t.Setenv("TRIAD_SEED", "99")
	t.Setenv("TRIAD_TASK", "index")
	t.Setenv("TRIAD_LOG_LEVEL", "trace")
	t.Setenv("TRIAD_OUTPUT_DIR", "/tmp/out")

	config, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.TotalTrials != 12 {
		t.Errorf("TotalTrials = %d, want 12", config.TotalTrials)
	}
	if config.Seed != 99 {
		t.Errorf("Seed = %d, want 99", config.Seed)
	}
	if config.Task != constants.TaskIndex || config.Sampling.MaxAngle != constants.MaxIndex {
		t.Errorf("task override not applied: %s %+v", config.Task, config.Sampling)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want trace", config.Logging.Level)
	}
	if config.Output.Dir != "/tmp/out" {
		t.Errorf("Output.Dir = %q", config.Output.Dir)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("TRIAD_TOTAL_TRIALS", "many")
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for non-numeric TRIAD_TOTAL_TRIALS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TriadConfig)
		wantErr string
	}{
		{"valid", func(*TriadConfig) {}, ""},
		{"unknown task", func(c *TriadConfig) { c.Task = "spin" }, "Task"},
		{"zero trials", func(c *TriadConfig) { c.TotalTrials = 0 }, "TotalTrials"},
		{"negative sd", func(c *TriadConfig) { c.Sampling.SDNear = -1 }, "SDNear"},
		{"bad log level", func(c *TriadConfig) { c.Logging.Level = "loud" }, "Level"},
		{"bad log format", func(c *TriadConfig) { c.Logging.Format = "xml" }, "Format"},
		{"bad extension", func(c *TriadConfig) { c.Stimuli.Extension = "png" }, "Extension"},
		{"bad catch option", func(c *TriadConfig) { c.CatchTrials[0].CorrectOption = 3 }, "CorrectOption"},
		{"catch table too long", func(c *TriadConfig) { c.TotalTrials = 1 }, "catch_trials"},
		{"max off grid", func(c *TriadConfig) { c.Sampling.MaxAngle = 182 }, "max_angle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CrossFieldIsInvalidConfigError(t *testing.T) {
	config := Default()
	config.ObjectCount = 1
	err := config.Validate()
	if !errors.Is(err, sequence.ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	config := Default()
	config.ApplyTask(constants.TaskIndex)
	config.Seed = 7

	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Task != constants.TaskIndex || loaded.Seed != 7 || loaded.Sampling != config.Sampling {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestForTask_Unknown(t *testing.T) {
	if got := ForTask("bogus"); got.Task != constants.TaskAngle {
		t.Errorf("ForTask(bogus).Task = %q, want angle", got.Task)
	}
}

func TestLoadPath_AppliesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	if err := os.WriteFile(path, []byte("total_trials: 20\nseed: 5\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("TRIAD_SEED", "8")

	config, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.TotalTrials != 20 {
		t.Errorf("TotalTrials = %d, want 20", config.TotalTrials)
	}
	if config.Seed != 8 {
		t.Errorf("Seed = %d, want 8 from environment", config.Seed)
	}

	if _, err := LoadPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadPath should fail for a missing file")
	}
}
