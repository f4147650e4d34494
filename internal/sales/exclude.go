// Package sales removes contacts that were already sold, by identifier.
package sales

import (
	"strings"

	"go.uber.org/zap"

	"github.com/contact-scrub/internal/normalize"
	"github.com/contact-scrub/internal/schema"
)

// Options tune the id comparison.
type Options struct {
	// NormalizeIDs compares ids through normalize.ID instead of as raw strings.
	// Off by default: historical runs compared raw values and sold lists are
	// exported with the same id formatting as the distribution.
	NormalizeIDs bool `yaml:"normalize_ids" json:"normalize_ids"`
}

// Stats are the counts of one exclusion step.
type Stats struct {
	Input   int `json:"input"`
	Removed int `json:"removed"`
	Output  int `json:"output"`
}

// Result holds the surviving records and the ones that were dropped.
type Result struct {
	Kept    *schema.Dataset
	Removed []schema.Record
	Stats   Stats
}

// Excluder drops distribution records whose id appears in a sales dataset.
type Excluder struct {
	field schema.Field
	opts  Options
	log   *zap.Logger
}

// New returns an Excluder comparing on field.
func New(field schema.Field, opts Options, log *zap.Logger) *Excluder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Excluder{field: field, opts: opts, log: log.Named("sales")}
}

// Field is the identifier field compared.
func (e *Excluder) Field() schema.Field {
	return e.field
}

func (e *Excluder) key(raw string) (string, bool) {
	if e.opts.NormalizeIDs {
		return normalize.ID(raw)
	}
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

// Exclude returns the records of dist whose id is not in sold, in their original order.
// An empty or nil sales dataset leaves dist unchanged.
func (e *Excluder) Exclude(dist, sold *schema.Dataset) *Result {
	if dist == nil {
		return &Result{}
	}
	n := dist.Len()
	if sold.Empty() || !sold.Has(e.field) {
		e.log.Debug("no sales records, identity pass", zap.Int("records", n))
		return &Result{Kept: dist.Subset(append([]schema.Record(nil), dist.Records...)), Stats: Stats{Input: n, Output: n}}
	}

	ids := make(map[string]struct{}, sold.Len())
	for _, rec := range sold.Records {
		raw, _ := sold.Get(rec, e.field)
		if k, ok := e.key(raw); ok {
			ids[k] = struct{}{}
		}
	}

	kept := make([]schema.Record, 0, n)
	var removed []schema.Record
	for _, rec := range dist.Records {
		raw, _ := dist.Get(rec, e.field)
		if k, ok := e.key(raw); ok {
			if _, hit := ids[k]; hit {
				removed = append(removed, rec)
				continue
			}
		}
		kept = append(kept, rec)
	}

	e.log.Info("sales history applied",
		zap.String("field", string(e.field)),
		zap.Bool("normalize_ids", e.opts.NormalizeIDs),
		zap.Int("sold_ids", len(ids)),
		zap.Int("input", n),
		zap.Int("removed", len(removed)),
	)
	return &Result{
		Kept:    dist.Subset(kept),
		Removed: removed,
		Stats:   Stats{Input: n, Removed: len(removed), Output: len(kept)},
	}
}
