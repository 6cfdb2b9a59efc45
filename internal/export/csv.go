// Package export serializes response logs as CSV, the only artifact a session
// produces. The header and column order are a stable contract for analysis
// scripts.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/triad-choice/internal/models"
)

// ErrEmptyLog is returned when a session with no completed trials is exported.
var ErrEmptyLog = errors.New("no completed trials to export")

// Columns is the fixed header row.
var Columns = []string{
	"trial", "objectId", "refAngle", "nearAngle", "farAngle",
	"chosenOption", "isCatch", "isCorrect", "timestamp",
}

// TimestampLayout renders UTC timestamps with millisecond precision, e.g.
// 2026-03-01T12:00:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ToCSV renders records under the fixed header. Empty input yields a
// header-only document. Output is byte-identical for identical input.
func ToCSV(records []models.ResponseRecord) string {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = Write(&buf, records)
	return buf.String()
}

// Write streams the CSV rendering of records to w.
func Write(w io.Writer, records []models.ResponseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("writing trial %d: %w", r.TrialIndex, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func row(r models.ResponseRecord) []string {
	correct := ""
	if r.IsCorrect != nil {
		correct = strconv.FormatBool(*r.IsCorrect)
	}
	return []string{
		strconv.Itoa(r.TrialIndex),
		strconv.Itoa(r.ObjectID),
		strconv.Itoa(r.RefAngle),
		strconv.Itoa(r.NearAngle),
		strconv.Itoa(r.FarAngle),
		r.ChosenOption.String(),
		strconv.FormatBool(r.IsCatch),
		correct,
		r.Timestamp.UTC().Format(TimestampLayout),
	}
}

// ParseCSV reads a document produced by Write back into records.
func ParseCSV(r io.Reader) ([]models.ResponseRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var records []models.ResponseRecord
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(f []string) (models.ResponseRecord, error) {
	var rec models.ResponseRecord
	ints := []*int{&rec.TrialIndex, &rec.ObjectID, &rec.RefAngle, &rec.NearAngle, &rec.FarAngle}
	for i, dst := range ints {
		n, err := strconv.Atoi(f[i])
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", Columns[i], err)
		}
		*dst = n
	}

	chosen, err := models.ParseOption(f[5])
	if err != nil {
		return rec, fmt.Errorf("column chosenOption: %w", err)
	}
	rec.ChosenOption = chosen

	if rec.IsCatch, err = strconv.ParseBool(f[6]); err != nil {
		return rec, fmt.Errorf("column isCatch: %w", err)
	}

	if f[7] != "" {
		correct, err := strconv.ParseBool(f[7])
		if err != nil {
			return rec, fmt.Errorf("column isCorrect: %w", err)
		}
		rec.IsCorrect = &correct
	}

	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, f[8]); err != nil {
		return rec, fmt.Errorf("column timestamp: %w", err)
	}
	return rec, nil
}

// WriteFile writes data to path atomically via a temp file and rename.
// The parent directory is created if needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing export temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming export file: %w", err)
	}
	return nil
}

// FileName returns the conventional export file name for a session.
// Partial sessions get a "-partial" suffix.
func FileName(sessionID string, complete bool) string {
	if complete {
		return fmt.Sprintf("responses-%s.csv", sessionID)
	}
	return fmt.Sprintf("responses-%s-partial.csv", sessionID)
}
