package output

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/contact-scrub/internal/schema"
)

// Options carry the per-run values injected into the layout.
type Options struct {
	// Constants set or override the value of destination columns by name.
	Constants map[string]string
	// Scrub lists destination or source column names whose values are always emptied.
	Scrub   []string
	RunDate time.Time
	RunID   string
}

// templateData is what constant templates can reference.
type templateData struct {
	RunDate time.Time
	RunID   string
}

// Projector turns surviving records into rows of the destination layout.
type Projector struct {
	layout Layout
	values []string // rendered constant per column, "" when not a constant

	scrubbed map[string]bool // folded destination or source column names to empty
}

// NewProjector renders the constants of layout for one run.
func NewProjector(layout Layout, opts Options) (*Projector, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	cols := append(Layout(nil), layout...)
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[foldName(c.Name)] = i
	}

	var unknown []string
	for name, value := range opts.Constants {
		i, ok := index[foldName(name)]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		cols[i] = Column{Name: cols[i].Name, Value: value}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("constants for unknown output columns: %s", strings.Join(unknown, ", "))
	}

	data := templateData{RunDate: opts.RunDate, RunID: opts.RunID}
	values := make([]string, len(cols))
	for i, c := range cols {
		if c.Value == "" {
			continue
		}
		v, err := render(c.Name, c.Value, data)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	scrubbed := make(map[string]bool, len(opts.Scrub))
	for _, name := range opts.Scrub {
		scrubbed[foldName(name)] = true
	}

	return &Projector{layout: cols, values: values, scrubbed: scrubbed}, nil
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// scrubMask marks the columns to empty for records of ds: those whose destination name,
// passthrough source or resolved source column is on the scrub list.
func (p *Projector) scrubMask(ds *schema.Dataset) []bool {
	mask := make([]bool, len(p.layout))
	if len(p.scrubbed) == 0 {
		return mask
	}
	for i, c := range p.layout {
		switch {
		case p.scrubbed[foldName(c.Name)]:
			mask[i] = true
		case c.Source != "":
			mask[i] = p.scrubbed[foldName(c.Source)]
		case c.Field != "":
			if col, ok := ds.Column(c.Field); ok {
				mask[i] = p.scrubbed[foldName(col)]
			}
		}
	}
	return mask
}

func render(name, text string, data templateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("output column %q: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("output column %q: %w", name, err)
	}
	return b.String(), nil
}

// Layout returns the effective layout after constants were applied.
func (p *Projector) Layout() Layout {
	return append(Layout(nil), p.layout...)
}

// Project builds one destination row per record of ds. Fields or columns ds does not carry
// come out as empty strings.
func (p *Projector) Project(ds *schema.Dataset, name string) schema.Table {
	table := schema.Table{Name: name, Header: p.layout.Header()}
	if ds.Empty() {
		table.Rows = [][]string{}
		return table
	}

	scrub := p.scrubMask(ds)
	table.Rows = make([][]string, 0, ds.Len())
	for _, rec := range ds.Records {
		row := make([]string, len(p.layout))
		for i, c := range p.layout {
			if scrub[i] {
				continue
			}
			switch {
			case c.Field != "":
				row[i], _ = ds.Get(rec, c.Field)
			case c.Source != "":
				row[i], _ = ds.Lookup(rec, c.Source)
			default:
				row[i] = p.values[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
