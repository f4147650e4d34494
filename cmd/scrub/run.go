package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/delivery"
	"github.com/contact-scrub/internal/export"
	"github.com/contact-scrub/internal/ingest"
	"github.com/contact-scrub/internal/match"
	"github.com/contact-scrub/internal/metrics"
	"github.com/contact-scrub/internal/pipeline"
	"github.com/contact-scrub/internal/schema"
	"github.com/contact-scrub/internal/sqlsource"
)

type runOptions struct {
	distribution    string
	references      []string
	sales           string
	referenceTables []string
	salesTable      string
	dbDriver        string
	dsn             string
	policy          string
	sheet           string
	out             string
	report          string
	deliver         bool
}

func createRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrub a distribution list",
		Long: `Removes distribution records matching any reference (blacklist) dataset, then
records whose id appears in the sales history, and writes the CRM import file.

References and sales history can be files (CSV, TSV or XLSX) or database tables.`,
		Example: `  scrub run -d reparto.xlsx -r lista_negra.xlsx -s vendidos.xlsx
  scrub run -d reparto.csv --reference-table crm.blacklist --sales-table crm.vendidos --policy field_or`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.distribution, "distribution", "d", "", "distribution list file (required)")
	f.StringArrayVarP(&opts.references, "reference", "r", nil, "reference (blacklist) file, repeatable")
	f.StringVarP(&opts.sales, "sales", "s", "", "sales history file")
	f.StringArrayVar(&opts.referenceTables, "reference-table", nil, "reference database table, repeatable")
	f.StringVar(&opts.salesTable, "sales-table", "", "sales history database table")
	f.StringVar(&opts.dbDriver, "db-driver", "", "database driver: postgres or sqlite (default $DB_DRIVER)")
	f.StringVar(&opts.dsn, "dsn", "", "database DSN (default $DATABASE_URL or the PG* variables)")
	f.StringVar(&opts.policy, "policy", "", "matching preset override: full_row, field_or or name_gated")
	f.StringVar(&opts.sheet, "sheet", "", "worksheet to read from XLSX inputs (default first)")
	f.StringVarP(&opts.out, "out", "o", "", "output file, .xlsx or .csv (default from config)")
	f.StringVar(&opts.report, "report", "", "write a CSV removal report to this path")
	f.BoolVar(&opts.deliver, "deliver", false, "upload the output file over SFTP")
	_ = cmd.MarkFlagRequired("distribution")
	cmd.MarkFlagsMutuallyExclusive("sales", "sales-table")

	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	start := time.Now()

	runFile, err := a.runFile()
	if err != nil {
		return err
	}
	cfg, err := runFile.PipelineConfig()
	if err != nil {
		return err
	}
	if opts.policy != "" {
		if cfg.Policy, err = match.Preset(match.Mode(opts.policy)); err != nil {
			return err
		}
	}
	cfg.Debug = a.env.Debug

	p, err := pipeline.New(cfg, a.log)
	if err != nil {
		metrics.ObserveFailure(failureKind(err))
		return err
	}

	in, err := a.loadInput(ctx, opts)
	if err != nil {
		metrics.ObserveFailure("input")
		return err
	}
	a.log.Debug("inputs loaded",
		zap.String("distribution", in.Distribution.Name),
		zap.Strings("references", tableNames(in.References)),
		zap.Bool("sales", in.Sales != nil))

	res, err := p.Run(in)
	if err != nil {
		metrics.ObserveFailure(failureKind(err))
		return err
	}

	out := opts.out
	if out == "" {
		out = cfg.OutputName
	}
	if err := export.WriteFile(out, res.Output, runFile.Output.Sheet); err != nil {
		return err
	}
	if opts.report != "" {
		if err := writeReport(opts.report, res); err != nil {
			return err
		}
	}

	metrics.ObserveRun(string(res.Policy.Mode), metrics.Counts{
		Input:            res.Stats.Input,
		RemovedBlacklist: res.Stats.RemovedBlacklist,
		RemovedSales:     res.Stats.RemovedSales,
		Output:           res.Stats.Output,
	}, time.Since(start))

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s)\n", res.RunID, res.Policy)
	fmt.Fprintf(w, "  input:             %d\n", res.Stats.Input)
	fmt.Fprintf(w, "  removed blacklist: %d\n", res.Stats.RemovedBlacklist)
	fmt.Fprintf(w, "  removed sales:     %d\n", res.Stats.RemovedSales)
	fmt.Fprintf(w, "  output:            %d -> %s\n", res.Stats.Output, out)

	if opts.deliver {
		sftpCfg := a.env.SFTP
		err := delivery.UploadFile(ctx, delivery.Config{
			Host:       sftpCfg.Host,
			Port:       sftpCfg.Port,
			User:       sftpCfg.User,
			Pass:       sftpCfg.Password,
			RemoteDir:  sftpCfg.RemoteDir,
			KnownHosts: sftpCfg.KnownHosts,
		}, out, filepath.Base(out))
		if err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		a.log.Info("output delivered", zap.String("host", sftpCfg.Host), zap.String("file", filepath.Base(out)))
		fmt.Fprintf(w, "  delivered to %s:%s\n", sftpCfg.Host, sftpCfg.RemoteDir)
	}

	return nil
}

func (a *app) loadInput(ctx context.Context, opts *runOptions) (pipeline.Input, error) {
	var in pipeline.Input
	readOpts := ingest.Options{Sheet: opts.sheet}

	dist, err := ingest.ReadFile(opts.distribution, readOpts)
	if err != nil {
		return in, err
	}
	in.Distribution = dist

	for _, path := range opts.references {
		ref, err := ingest.ReadFile(path, readOpts)
		if err != nil {
			return in, err
		}
		in.References = append(in.References, ref)
	}

	if opts.sales != "" {
		sold, err := ingest.ReadFile(opts.sales, readOpts)
		if err != nil {
			return in, err
		}
		in.Sales = &sold
	}

	if len(opts.referenceTables) == 0 && opts.salesTable == "" {
		return in, nil
	}

	driver, dsn := opts.dbDriver, opts.dsn
	if driver == "" {
		driver = a.env.DBDriver
	}
	if dsn == "" {
		dsn = a.env.DatabaseURL
	}
	src, err := sqlsource.Open(ctx, driver, dsn)
	if err != nil {
		return in, err
	}
	defer src.Close()

	for _, table := range opts.referenceTables {
		ref, err := src.Load(ctx, table, nil)
		if err != nil {
			return in, err
		}
		in.References = append(in.References, ref)
	}
	if opts.salesTable != "" {
		sold, err := src.Load(ctx, opts.salesTable, nil)
		if err != nil {
			return in, err
		}
		in.Sales = &sold
	}
	return in, nil
}

func writeReport(path string, res *pipeline.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	if err := res.Trail.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return file.Close()
}

// failureKind labels a failed run for the failure metric.
func failureKind(err error) string {
	var (
		configErr *config.ValidationError
		policyErr *match.PolicyConfigError
		schemaErr *schema.SchemaError
	)
	switch {
	case errors.As(err, &configErr):
		return "config"
	case errors.As(err, &policyErr):
		return "policy"
	case errors.As(err, &schemaErr):
		return "schema"
	default:
		return "internal"
	}
}

// tableNames lists dataset names for display.
func tableNames(tables []schema.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
