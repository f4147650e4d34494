// Package audit keeps the trail of removal decisions made during a scrub run.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contact-scrub/internal/schema"
)

// Stage is the pipeline step that removed a record.
type Stage string

const (
	StageBlacklist Stage = "blacklist"
	StageSales     Stage = "sales"
)

// Decision records why one distribution record was removed.
type Decision struct {
	Stage     Stage
	Line      int            // 1-based data row in the distribution file
	Reference string         // reference dataset that produced the match
	Fields    []schema.Field // fields that matched
	Values    map[schema.Field]string
}

// Trail collects the decisions of a single run. It is not safe for concurrent use;
// a run is single-threaded.
type Trail struct {
	RunID     string
	StartedAt time.Time
	decisions []Decision
}

// NewTrail starts an empty trail for run.
func NewTrail(runID string, startedAt time.Time) *Trail {
	return &Trail{RunID: runID, StartedAt: startedAt}
}

// Record appends a decision.
func (t *Trail) Record(d Decision) {
	t.decisions = append(t.decisions, d)
}

// RecordRemoval builds a decision from a removed record, capturing the raw values of fields.
func (t *Trail) RecordRemoval(stage Stage, ds *schema.Dataset, rec schema.Record, reference string, fields []schema.Field) {
	values := make(map[schema.Field]string, len(fields))
	for _, f := range fields {
		if v, ok := ds.Get(rec, f); ok {
			values[f] = v
		}
	}
	t.Record(Decision{Stage: stage, Line: rec.Line, Reference: reference, Fields: fields, Values: values})
}

// Decisions returns the recorded decisions in order.
func (t *Trail) Decisions() []Decision {
	return append([]Decision(nil), t.decisions...)
}

// Len returns the number of decisions.
func (t *Trail) Len() int {
	return len(t.decisions)
}

// Summary aggregates a trail.
type Summary struct {
	RunID       string         `json:"run_id"`
	ByStage     map[Stage]int  `json:"by_stage"`
	ByField     map[string]int `json:"by_field"`
	ByReference map[string]int `json:"by_reference"`
}

// Summary counts decisions per stage, per matched field and per reference dataset.
func (t *Trail) Summary() Summary {
	s := Summary{
		RunID:       t.RunID,
		ByStage:     make(map[Stage]int),
		ByField:     make(map[string]int),
		ByReference: make(map[string]int),
	}
	for _, d := range t.decisions {
		s.ByStage[d.Stage]++
		if d.Reference != "" {
			s.ByReference[d.Reference]++
		}
		for _, f := range d.Fields {
			s.ByField[string(f)]++
		}
	}
	return s
}

var reportHeader = []string{"run_id", "stage", "line", "reference", "matched_fields", "values"}

// WriteCSV writes one row per decision.
func (t *Trail) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write audit header: %w", err)
	}

	for _, d := range t.decisions {
		fields := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = string(f)
		}

		keys := make([]string, 0, len(d.Values))
		for f := range d.Values {
			keys = append(keys, string(f))
		}
		sort.Strings(keys)
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = k + "=" + d.Values[schema.Field(k)]
		}

		row := []string{
			t.RunID,
			string(d.Stage),
			strconv.Itoa(d.Line),
			d.Reference,
			strings.Join(fields, "|"),
			strings.Join(values, "|"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write audit row for line %d: %w", d.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
