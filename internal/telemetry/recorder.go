package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// FileName is the CSV file written in the output directory.
const FileName = "flock.csv"

// Recorder appends StepStats rows to <dir>/flock.csv, one every Every steps.
// A nil *Recorder is valid and writes nothing.
type Recorder struct {
	dir   string
	runID string
	every uint64

	file          *os.File
	headerWritten bool
}

// NewRecorder creates dir and flock.csv in it. It returns nil when dir is
// empty (output disabled). every < 1 records every step.
func NewRecorder(dir string, every int) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", FileName, err)
	}

	if every < 1 {
		every = 1
	}
	return &Recorder{
		dir:   dir,
		runID: uuid.NewString(),
		every: uint64(every),
		file:  f,
	}, nil
}

// RunID identifies this run in every row.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Dir returns the output directory path.
func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// Due reports whether step should be recorded.
func (r *Recorder) Due(step uint64) bool {
	return r != nil && step%r.every == 0
}

// Record writes one row, with the header before the first one.
func (r *Recorder) Record(stats StepStats) error {
	if r == nil {
		return nil
	}
	if r.file == nil {
		return fmt.Errorf("writing telemetry: %s already closed", FileName)
	}
	stats.RunID = r.runID
	records := []StepStats{stats}

	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.file); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.file); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Close flushes and closes the CSV file.
func (r *Recorder) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
