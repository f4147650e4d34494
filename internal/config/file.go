// Package config reads the process environment and the YAML run configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/contact-scrub/internal/match"
	"github.com/contact-scrub/internal/output"
	"github.com/contact-scrub/internal/pipeline"
	"github.com/contact-scrub/internal/sales"
	"github.com/contact-scrub/internal/schema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// File is the YAML run configuration. Every section is optional.
type File struct {
	// Preset picks a built-in policy; Policy, when present, wins.
	Preset   match.Mode                                `yaml:"preset" validate:"omitempty,oneof=full_row field_or name_gated"`
	Policy   *match.Policy                             `yaml:"policy"`
	Mappings map[schema.Role]map[schema.Field][]string `yaml:"mappings" validate:"dive,keys,oneof=distribution reference sales,endkeys"`
	Output   Output                                    `yaml:"output"`
	Sales    Sales                                     `yaml:"sales"`
}

// Output configures the projector and the written file.
type Output struct {
	FileName  string            `yaml:"file_name" validate:"omitempty,excludesall=/\\"`
	Sheet     string            `yaml:"sheet" validate:"omitempty,max=31"`
	Layout    output.Layout     `yaml:"layout" validate:"omitempty,dive"`
	Constants map[string]string `yaml:"constants" validate:"dive,keys,required,endkeys"`
	Scrub     []string          `yaml:"scrub" validate:"dive,required"`
}

// Sales configures sold-contact exclusion.
type Sales struct {
	IDField      schema.Field `yaml:"id_field"`
	NormalizeIDs bool         `yaml:"normalize_ids"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Preset: match.ModeFullRow,
		Output: Output{FileName: output.DefaultFileName, Sheet: "Sheet1"},
		Sales:  Sales{IDField: schema.RecordID},
	}
}

// Load reads and validates a YAML run configuration. Unset values take their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks struct constraints and that the policy and layout are usable.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newValidationError(verrs)
		}
		return err
	}
	if problems := f.fieldProblems(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	policy, err := f.MatchPolicy()
	if err != nil {
		return err
	}
	if err := policy.Validate(f.SchemaMappings()); err != nil {
		return err
	}
	_, err = output.NewProjector(f.OutputLayout(), output.Options{Constants: f.Output.Constants, Scrub: f.Output.Scrub})
	return err
}

func (f *File) fieldProblems() []string {
	var problems []string
	for _, role := range []schema.Role{schema.RoleDistribution, schema.RoleReference, schema.RoleSales} {
		for field, aliases := range f.Mappings[role] {
			if !field.Valid() {
				problems = append(problems, fmt.Sprintf("mappings.%s: unknown field %q", role, field))
				continue
			}
			if len(aliases) == 0 {
				problems = append(problems, fmt.Sprintf("mappings.%s.%s: no column names", role, field))
			}
			for _, alias := range aliases {
				if strings.TrimSpace(alias) == "" {
					problems = append(problems, fmt.Sprintf("mappings.%s.%s: empty column name", role, field))
					break
				}
			}
		}
	}
	if f.Sales.IDField != "" && !f.Sales.IDField.Valid() {
		problems = append(problems, fmt.Sprintf("sales.id_field: unknown field %q", f.Sales.IDField))
	}
	sort.Strings(problems)
	return problems
}

// MatchPolicy returns the explicit policy or the preset's.
func (f *File) MatchPolicy() (match.Policy, error) {
	if f.Policy != nil {
		return *f.Policy, nil
	}
	preset := f.Preset
	if preset == "" {
		preset = match.ModeFullRow
	}
	return match.Preset(preset)
}

// SchemaMappings overlays the configured aliases on the defaults, field by field.
func (f *File) SchemaMappings() schema.Mappings {
	mappings := schema.DefaultMappings()
	for role, fields := range f.Mappings {
		merged := schema.Mapping{}
		for field, aliases := range mappings[role] {
			merged[field] = aliases
		}
		for field, aliases := range fields {
			merged[field] = aliases
		}
		mappings[role] = merged
	}
	return mappings
}

// OutputLayout returns the configured layout or the PN default.
func (f *File) OutputLayout() output.Layout {
	if len(f.Output.Layout) > 0 {
		return f.Output.Layout
	}
	return output.DefaultLayout()
}

// SalesOptions returns the sales id field and comparison options.
func (f *File) SalesOptions() (schema.Field, sales.Options) {
	field := f.Sales.IDField
	if field == "" {
		field = schema.RecordID
	}
	return field, sales.Options{NormalizeIDs: f.Sales.NormalizeIDs}
}

// ValidationError lists every config constraint that failed.
type ValidationError struct {
	Problems []string
}

func newValidationError(verrs validator.ValidationErrors) *ValidationError {
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: failed '%s=%s', got '%v'", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	msg := "invalid run config:"
	for _, p := range e.Problems {
		msg += "\n • " + p
	}
	return msg
}

// PipelineConfig turns the file into the settings of a pipeline run.
func (f *File) PipelineConfig() (pipeline.Config, error) {
	policy, err := f.MatchPolicy()
	if err != nil {
		return pipeline.Config{}, err
	}
	field, opts := f.SalesOptions()
	return pipeline.Config{
		Policy:       policy,
		Mappings:     f.SchemaMappings(),
		Layout:       f.OutputLayout(),
		Constants:    f.Output.Constants,
		Scrub:        f.Output.Scrub,
		SalesField:   field,
		SalesOptions: opts,
		OutputName:   f.Output.FileName,
	}, nil
}
