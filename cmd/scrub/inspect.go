package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contact-scrub/internal/ingest"
	"github.com/contact-scrub/internal/pipeline"
	"github.com/contact-scrub/internal/schema"
)

// createCheckCmd validates the run config and prints what a run would use
func createCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the run config and print the effective policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			runFile, err := a.runFile()
			if err != nil {
				return err
			}
			cfg, err := runFile.PipelineConfig()
			if err != nil {
				return err
			}
			// pipeline.New applies the same checks a run does
			p, err := pipeline.New(cfg, a.log)
			if err != nil {
				return err
			}
			cfg = p.Config()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Policy: %s\n", cfg.Policy)
			for _, role := range []schema.Role{schema.RoleDistribution, schema.RoleReference} {
				fmt.Fprintf(w, "Required %s fields: %s\n", role, joinFields(cfg.Policy.Required(role)))
			}
			fmt.Fprintf(w, "Sales id field: %s (normalize_ids=%t)\n", cfg.SalesField, cfg.SalesOptions.NormalizeIDs)
			fmt.Fprintf(w, "Output: %s\n", cfg.OutputName)
			fmt.Fprintf(w, "Columns: %s\n", strings.Join(cfg.Layout.Header(), " | "))
			if len(cfg.Scrub) > 0 {
				fmt.Fprintf(w, "Scrubbed: %s\n", strings.Join(cfg.Scrub, ", "))
			}
			return nil
		},
	}
}

// createColumnsCmd shows how a file's header resolves to logical fields
func createColumnsCmd(a *app) *cobra.Command {
	var role, sheet string

	cmd := &cobra.Command{
		Use:   "columns [filename]",
		Short: "Show which logical fields a file's columns resolve to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runFile, err := a.runFile()
			if err != nil {
				return err
			}
			mapping, ok := runFile.SchemaMappings()[schema.Role(role)]
			if !ok {
				return fmt.Errorf("unknown role %q (expected distribution, reference or sales)", role)
			}

			table, err := ingest.ReadFile(args[0], ingest.Options{Sheet: sheet})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s as %s (%d rows)\n", table.Name, role, table.Len())

			resolved := schema.Resolve(table.Header, mapping)
			used := make(map[int]bool, len(resolved))
			for _, f := range schema.Fields() {
				idx, ok := resolved[f]
				if !ok {
					fmt.Fprintf(w, "  %-22s -\n", f)
					continue
				}
				used[idx] = true
				fmt.Fprintf(w, "  %-22s %s\n", f, table.Header[idx])
			}

			var extra []string
			for i, col := range table.Header {
				if !used[i] {
					extra = append(extra, col)
				}
			}
			if len(extra) > 0 {
				sort.Strings(extra)
				fmt.Fprintf(w, "Unmapped columns: %s\n", strings.Join(extra, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(schema.RoleDistribution), "dataset role: distribution, reference or sales")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read from an XLSX file")
	return cmd
}

func joinFields(fields []schema.Field) string {
	if len(fields) == 0 {
		return "(none)"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
