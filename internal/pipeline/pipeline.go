// Package pipeline runs a complete scrub: adapt, blacklist filter, sales exclusion, projection.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contact-scrub/internal/audit"
	"github.com/contact-scrub/internal/debug"
	"github.com/contact-scrub/internal/match"
	"github.com/contact-scrub/internal/output"
	"github.com/contact-scrub/internal/sales"
	"github.com/contact-scrub/internal/schema"
)

// Config is everything a run needs besides its input tables.
type Config struct {
	Policy       match.Policy
	Mappings     schema.Mappings
	Layout       output.Layout
	Constants    map[string]string
	Scrub        []string
	SalesField   schema.Field
	SalesOptions sales.Options
	OutputName   string
	Debug        bool
}

// Input holds the already-parsed tables of one run. Sales is optional.
type Input struct {
	Distribution schema.Table
	References   []schema.Table
	Sales        *schema.Table
}

// Stats are the row counts of a run. Input == RemovedBlacklist + RemovedSales + Output.
type Stats struct {
	Input            int `json:"input"`
	RemovedBlacklist int `json:"removed_blacklist"`
	RemovedSales     int `json:"removed_sales"`
	Output           int `json:"output"`
}

// Result is a finished run.
type Result struct {
	RunID   string
	RunDate time.Time
	Policy  match.Policy
	Output  schema.Table
	Stats   Stats
	Trail   *audit.Trail
}

// Pipeline is a validated, reusable scrub configuration.
type Pipeline struct {
	cfg      Config
	matcher  *match.Matcher
	excluder *sales.Excluder
	log      *zap.Logger
	now      func() time.Time
}

// New validates cfg eagerly so a bad policy or layout fails before any data is read.
func New(cfg Config, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mappings == nil {
		cfg.Mappings = schema.DefaultMappings()
	}
	if len(cfg.Layout) == 0 {
		cfg.Layout = output.DefaultLayout()
	}
	if cfg.SalesField == "" {
		cfg.SalesField = schema.RecordID
	}
	if !cfg.SalesField.Valid() {
		return nil, fmt.Errorf("unknown sales id field %q", cfg.SalesField)
	}
	if cfg.OutputName == "" {
		cfg.OutputName = output.DefaultFileName
	}

	matcher, err := match.New(cfg.Policy, cfg.Mappings, log)
	if err != nil {
		return nil, err
	}
	// Catch layout, constant and template problems now rather than mid-run.
	if _, err := output.NewProjector(cfg.Layout, output.Options{Constants: cfg.Constants, Scrub: cfg.Scrub, RunDate: time.Now()}); err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		matcher:  matcher,
		excluder: sales.New(cfg.SalesField, cfg.SalesOptions, log),
		log:      log.Named("pipeline"),
		now:      time.Now,
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes one scrub. It either returns a complete result or an error; on error no
// partial output is produced. Schema problems in every dataset are reported together.
func (p *Pipeline) Run(in Input) (*Result, error) {
	runID := uuid.NewString()
	runDate := p.now()
	log := p.log.With(zap.String("run_id", runID))
	defer debug.Timing(log, p.cfg.Debug, "scrub run")()

	dist, refs, sold, err := p.adapt(in, log)
	if err != nil {
		log.Warn("run rejected", zap.Error(err))
		return nil, err
	}

	projector, err := output.NewProjector(p.cfg.Layout, output.Options{
		Constants: p.cfg.Constants,
		Scrub:     p.cfg.Scrub,
		RunDate:   runDate,
		RunID:     runID,
	})
	if err != nil {
		return nil, err
	}

	trail := audit.NewTrail(runID, runDate)

	done := debug.Timing(log, p.cfg.Debug, "blacklist filter")
	filtered := p.matcher.Filter(dist, refs)
	done()
	for _, r := range filtered.Removed {
		trail.RecordRemoval(audit.StageBlacklist, dist, r.Record, r.Reference, r.Fields)
	}

	survivors := filtered.Kept
	removedSales := 0
	if sold != nil {
		done = debug.Timing(log, p.cfg.Debug, "sales exclusion")
		excluded := p.excluder.Exclude(filtered.Kept, sold)
		done()
		for _, rec := range excluded.Removed {
			trail.RecordRemoval(audit.StageSales, dist, rec, sold.Name, []schema.Field{p.cfg.SalesField})
		}
		survivors = excluded.Kept
		removedSales = excluded.Stats.Removed
	}

	out := projector.Project(survivors, p.cfg.OutputName)

	stats := Stats{
		Input:            dist.Len(),
		RemovedBlacklist: filtered.Stats.Removed,
		RemovedSales:     removedSales,
		Output:           len(out.Rows),
	}
	log.Info("scrub complete",
		zap.String("policy", p.cfg.Policy.String()),
		zap.Int("input", stats.Input),
		zap.Int("removed_blacklist", stats.RemovedBlacklist),
		zap.Int("removed_sales", stats.RemovedSales),
		zap.Int("output", stats.Output),
	)

	return &Result{
		RunID:   runID,
		RunDate: runDate,
		Policy:  p.cfg.Policy,
		Output:  out,
		Stats:   stats,
		Trail:   trail,
	}, nil
}

// adapt resolves every dataset of in. Reference and sales tables without rows are dropped
// before any column check: they can never remove a record.
func (p *Pipeline) adapt(in Input, log *zap.Logger) (*schema.Dataset, []*schema.Dataset, *schema.Dataset, error) {
	policy := p.cfg.Policy
	var errs []error

	salesTable := in.Sales
	if salesTable != nil && salesTable.Len() == 0 {
		debug.Output(log, p.cfg.Debug, "sales table %q has no rows, exclusion skipped", salesTable.Name)
		salesTable = nil
	}

	required := policy.Required(schema.RoleDistribution)
	if salesTable != nil && !contains(required, p.cfg.SalesField) {
		required = append(required, p.cfg.SalesField)
	}
	dist, err := schema.Adapt(in.Distribution, schema.RoleDistribution,
		p.cfg.Mappings[schema.RoleDistribution], required)
	if err != nil {
		errs = append(errs, err)
	} else {
		debug.Output(log, p.cfg.Debug, "distribution %q resolved %v", dist.Name, dist.ResolvedFields())
	}

	refs := make([]*schema.Dataset, 0, len(in.References))
	for _, table := range in.References {
		if table.Len() == 0 {
			debug.Output(log, p.cfg.Debug, "reference %q has no rows, skipped", table.Name)
			continue
		}
		ref, err := schema.Adapt(table, schema.RoleReference,
			p.cfg.Mappings[schema.RoleReference], policy.Required(schema.RoleReference))
		if err == nil {
			err = policy.CheckResolved(ref)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		debug.Output(log, p.cfg.Debug, "reference %q resolved %v", ref.Name, ref.ResolvedFields())
		refs = append(refs, ref)
	}

	var sold *schema.Dataset
	if salesTable != nil {
		sold, err = schema.Adapt(*salesTable, schema.RoleSales,
			p.cfg.Mappings[schema.RoleSales], []schema.Field{p.cfg.SalesField})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, nil, errors.Join(errs...)
	}
	return dist, refs, sold, nil
}

func contains(fields []schema.Field, f schema.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
