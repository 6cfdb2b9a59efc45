package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/nvandessel/triad-choice/internal/export"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/store"
)

// runCLI executes the root command with args and stdin, returning stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// isolateEnv clears TRIAD_* overrides so the host environment cannot leak in.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TRIAD_TASK", "TRIAD_TOTAL_TRIALS", "TRIAD_OBJECT_COUNT", "TRIAD_SEED",
		"TRIAD_STIMULUS_DIR", "TRIAD_OUTPUT_DIR", "TRIAD_LOG_LEVEL", "TRIAD_LOG_FORMAT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("HOME", t.TempDir())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "run", "simulate", "sessions", "export", "config"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"json", "data-dir"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("root command missing --%s", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "triad version "+version) {
		t.Errorf("version output = %q", out)
	}

	out, err = runCLI(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("version --json output not JSON: %v", err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestSimulateCmd_ExportsAndArchives(t *testing.T) {
	isolateEnv(t)
	dataDir := t.TempDir()
	outDir := t.TempDir()

	out, err := runCLI(t, "", "simulate", "--json", "--seed", "7", "--data-dir", dataDir, "--out", outDir)
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	var result runResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("simulate output not JSON: %v\n%s", err, out)
	}
	if result.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if result.Seed != 7 {
		t.Errorf("Seed = %d, want 7", result.Seed)
	}
	if result.Summary.Trials != constants.DefaultTotalTrials {
		t.Errorf("Trials = %d, want %d", result.Summary.Trials, constants.DefaultTotalTrials)
	}
	if result.Summary.CatchTrials != 2 {
		t.Errorf("CatchTrials = %d, want 2", result.Summary.CatchTrials)
	}
	wantPath := filepath.Join(outDir, export.FileName(result.SessionID, true))
	if result.CSVPath != wantPath {
		t.Errorf("CSVPath = %s, want %s", result.CSVPath, wantPath)
	}

	rows := readCSV(t, result.CSVPath)
	if len(rows) != constants.DefaultTotalTrials+1 {
		t.Fatalf("CSV rows = %d, want %d", len(rows), constants.DefaultTotalTrials+1)
	}
	if strings.Join(rows[0], ",") != strings.Join(export.Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}

	// The archive holds the same answers.
	out, err = runCLI(t, "", "sessions", "--json", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("sessions error = %v", err)
	}
	var listing struct {
		Sessions []store.SessionMeta `json:"sessions"`
		Count    int                 `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("sessions output not JSON: %v", err)
	}
	if listing.Count != 1 || listing.Sessions[0].ID != result.SessionID {
		t.Fatalf("sessions = %+v", listing)
	}
	if listing.Sessions[0].Answered != constants.DefaultTotalTrials || listing.Sessions[0].Status != store.StatusCompleted {
		t.Errorf("archived session = %+v", listing.Sessions[0])
	}

	exported, err := runCLI(t, "", "export", result.SessionID, "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	written, err := os.ReadFile(result.CSVPath)
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if exported != string(written) {
		t.Error("CSV exported from the archive differs from the CSV written by the run")
	}
}

func TestSimulateCmd_SeedReproducible(t *testing.T) {
	isolateEnv(t)

	stripTimestamps := func(rows [][]string) string {
		var b strings.Builder
		for _, r := range rows {
			b.WriteString(strings.Join(r[:len(r)-1], ","))
			b.WriteByte('\n')
		}
		return b.String()
	}

	var runs []string
	for i := 0; i < 2; i++ {
		out, err := runCLI(t, "", "simulate", "--json", "--seed", "123", "--data-dir", t.TempDir(), "--out", t.TempDir())
		if err != nil {
			t.Fatalf("simulate error = %v", err)
		}
		var result runResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("simulate output not JSON: %v", err)
		}
		runs = append(runs, stripTimestamps(readCSV(t, result.CSVPath)))
	}
	if runs[0] != runs[1] {
		t.Error("same seed produced different sessions")
	}
}

func TestRunCmd_CompleteSession(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TRIAD_TOTAL_TRIALS", "4")
	outDir := t.TempDir()

	out, err := runCLI(t, "1\n2\n1\n1\n", "run", "--seed", "5", "--data-dir", t.TempDir(), "--out", outDir, "--stimuli", t.TempDir())
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	for _, want := range []string{"Trial 1 / 4", "Trial 4 / 4", "Session complete", "Catch trials correct"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q", want)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(outDir, "responses-*.csv"))
	if len(matches) != 1 || strings.HasSuffix(matches[0], "-partial.csv") {
		t.Fatalf("exported files = %v", matches)
	}
	rows := readCSV(t, matches[0])
	if len(rows) != 5 {
		t.Fatalf("CSV rows = %d, want 5", len(rows))
	}
	wantChoices := []string{"1", "2", "1", "1"}
	for i, want := range wantChoices {
		if rows[i+1][5] != want {
			t.Errorf("row %d chosenOption = %s, want %s", i+1, rows[i+1][5], want)
		}
	}
}

func TestRunCmd_EndOfInputWritesPartial(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TRIAD_TOTAL_TRIALS", "6")
	dataDir := t.TempDir()
	outDir := t.TempDir()

	out, err := runCLI(t, "2\nabc\n1\n", "run", "--json", "--data-dir", dataDir, "--out", outDir)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	var result runResult
	if err := json.Unmarshal([]byte(out[strings.LastIndex(out, "{\"session_id\""):]), &result); err != nil {
		t.Fatalf("run --json output not JSON: %v\n%s", err, out)
	}
	if result.Status != store.StatusAborted {
		t.Errorf("Status = %q, want aborted", result.Status)
	}
	if result.Summary.Trials != 2 {
		t.Errorf("Trials = %d, want 2", result.Summary.Trials)
	}
	if !strings.HasSuffix(result.CSVPath, "-partial.csv") {
		t.Errorf("CSVPath = %s, want a partial export", result.CSVPath)
	}
	if rows := readCSV(t, result.CSVPath); len(rows) != 3 {
		t.Errorf("CSV rows = %d, want 3", len(rows))
	}

	s, err := store.NewSQLiteSessionStore(dataDir)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer s.Close()
	meta, err := s.GetSession(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if meta.Status != store.StatusAborted || meta.Answered != 2 || meta.EndedAt == nil {
		t.Errorf("archived session = %+v", meta)
	}
}

func TestRunCmd_NoAnswersNoExport(t *testing.T) {
	isolateEnv(t)
	outDir := t.TempDir()

	out, err := runCLI(t, "", "run", "--archive=false", "--data-dir", t.TempDir(), "--out", outDir)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "Session aborted") || !strings.Contains(out, "No responses to save.") {
		t.Errorf("run output = %s", out)
	}
	if matches, _ := filepath.Glob(filepath.Join(outDir, "*.csv")); len(matches) != 0 {
		t.Errorf("unexpected exports: %v", matches)
	}
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TRIAD_TOTAL_TRIALS", "1")

	if _, err := runCLI(t, "", "run", "--data-dir", t.TempDir()); err == nil {
		t.Error("run should reject more catch trials than total trials")
	}
}

func TestExportCmd_UnknownSession(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "", "export", "nope", "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no archived session") {
		t.Errorf("export error = %v", err)
	}
}

func TestExportCmd_ToDirectory(t *testing.T) {
	isolateEnv(t)
	dataDir := t.TempDir()

	s, err := store.NewSQLiteSessionStore(dataDir)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	ctx := context.Background()
	if err := s.CreateSession(ctx, store.SessionMeta{ID: "abc", Task: "angle", TotalTrials: 3}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	rec := models.ResponseRecord{TrialIndex: 1, ObjectID: 4, RefAngle: 10, NearAngle: 15, FarAngle: 40, ChosenOption: models.OptionFar}
	if err := s.AppendResponse(ctx, "abc", rec); err != nil {
		t.Fatalf("AppendResponse() error = %v", err)
	}
	s.Close()

	outDir := t.TempDir()
	if _, err := runCLI(t, "", "export", "abc", "--data-dir", dataDir, "--out", outDir); err != nil {
		t.Fatalf("export error = %v", err)
	}
	rows := readCSV(t, filepath.Join(outDir, export.FileName("abc", false)))
	if len(rows) != 2 || rows[1][1] != "4" || rows[1][5] != "2" {
		t.Errorf("exported rows = %v", rows)
	}
}

func TestConfigCmds(t *testing.T) {
	isolateEnv(t)
	dataDir := t.TempDir()

	out, err := runCLI(t, "", "config", "path", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	wantPath := filepath.Join(dataDir, constants.ConfigFileName)
	if strings.TrimSpace(out) != wantPath {
		t.Errorf("config path = %q, want %q", out, wantPath)
	}

	if _, err := runCLI(t, "", "config", "init", "--task", "index", "--data-dir", dataDir); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := runCLI(t, "", "config", "init", "--data-dir", dataDir); err == nil {
		t.Error("config init should refuse to overwrite without --force")
	}
	if _, err := runCLI(t, "", "config", "init", "--task", "bogus", "--data-dir", dataDir, "--force"); err == nil {
		t.Error("config init should reject an unknown task")
	}

	out, err = runCLI(t, "", "config", "show", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "task: index") {
		t.Errorf("config show output missing index task:\n%s", out)
	}
}
