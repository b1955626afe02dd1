package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sink exports the records of a finished (or halted) run.
type Sink interface {
	Export(ctx context.Context, run Run, records []Record) error
}

// MultiSink exports to every sink in order. A failing sink does not stop
// the others; all errors are joined.
type MultiSink []Sink

func (m MultiSink) Export(ctx context.Context, run Run, records []Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, run, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONSink writes a run as a single JSON document.
type JSONSink struct {
	// Dir is the output directory; the file is named <stem>.json.
	Dir string
}

// jsonReport is the document JSONSink writes.
type jsonReport struct {
	Run     Run      `json:"run"`
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`
}

// Path returns the file the sink writes for run.
func (s JSONSink) Path(run Run) string {
	return filepath.Join(s.Dir, run.Stem()+".json")
}

func (s JSONSink) Export(ctx context.Context, run Run, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(jsonReport{Run: run, Summary: Summarize(records), Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(s.Path(run), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
