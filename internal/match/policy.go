package match

import (
	"fmt"
	"strings"

	"github.com/contact-scrub/internal/schema"
)

// Mode selects how per-field match results combine into a removal decision.
type Mode string

const (
	// ModeFullRow removes a record when every configured field equals some reference record's.
	ModeFullRow Mode = "full_row"
	// ModeFieldOr removes a record when any configured field appears in the references.
	ModeFieldOr Mode = "field_or"
	// ModeNameGated only considers records whose gate field matches, then ORs the secondary fields.
	ModeNameGated Mode = "name_gated"
)

// Policy is the matching configuration. Fields drives full_row and field_or;
// Gate and Secondary drive name_gated. Expected, when set, makes the listed fields
// mandatory in distribution and reference datasets whether or not they are matched on.
type Policy struct {
	Mode      Mode           `yaml:"mode" json:"mode"`
	Fields    []schema.Field `yaml:"fields,omitempty" json:"fields,omitempty"`
	Gate      schema.Field   `yaml:"gate,omitempty" json:"gate,omitempty"`
	Secondary []schema.Field `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Expected  []schema.Field `yaml:"expected,omitempty" json:"expected,omitempty"`
}

// FullRowPreset is the legacy exact anti-join: every expected column is mandatory and
// takes part in the row comparison.
func FullRowPreset() Policy {
	fields := []schema.Field{schema.ProfileLink, schema.PersonName, schema.PhonePrimary, schema.RecordID, schema.Qualification}
	return Policy{
		Mode:     ModeFullRow,
		Fields:   fields,
		Expected: append([]schema.Field(nil), fields...),
	}
}

// FieldOrPreset removes on any of company, name, title or profile link.
func FieldOrPreset() Policy {
	return Policy{
		Mode:   ModeFieldOr,
		Fields: []schema.Field{schema.Company, schema.PersonName, schema.JobTitle, schema.ProfileLink},
	}
}

// NameGatedPreset gates on the person name and confirms on link, company or title.
func NameGatedPreset() Policy {
	return Policy{
		Mode:      ModeNameGated,
		Gate:      schema.PersonName,
		Secondary: []schema.Field{schema.ProfileLink, schema.Company, schema.JobTitle},
	}
}

// Preset returns the built-in policy for mode.
func Preset(mode Mode) (Policy, error) {
	switch mode {
	case ModeFullRow:
		return FullRowPreset(), nil
	case ModeFieldOr:
		return FieldOrPreset(), nil
	case ModeNameGated:
		return NameGatedPreset(), nil
	}
	return Policy{}, &PolicyConfigError{Problems: []string{fmt.Sprintf("unknown mode %q", mode)}}
}

// MatchFields returns every field the policy reads, gate first for name_gated.
func (p Policy) MatchFields() []schema.Field {
	if p.Mode == ModeNameGated {
		return append([]schema.Field{p.Gate}, p.Secondary...)
	}
	return append([]schema.Field(nil), p.Fields...)
}

// Validate checks the policy is internally consistent and that every field it reads is
// produced by some role in mappings.
func (p Policy) Validate(mappings schema.Mappings) error {
	var problems []string

	switch p.Mode {
	case ModeFullRow, ModeFieldOr:
		if len(p.Fields) == 0 {
			problems = append(problems, fmt.Sprintf("mode %s needs at least one field", p.Mode))
		}
		if p.Gate != "" || len(p.Secondary) > 0 {
			problems = append(problems, fmt.Sprintf("mode %s does not take gate or secondary fields", p.Mode))
		}
	case ModeNameGated:
		if p.Gate == "" {
			problems = append(problems, "mode name_gated needs a gate field")
		}
		if len(p.Secondary) == 0 {
			problems = append(problems, "mode name_gated needs at least one secondary field")
		}
		if len(p.Fields) > 0 {
			problems = append(problems, "mode name_gated takes gate and secondary, not fields")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", p.Mode))
	}

	seen := make(map[schema.Field]bool)
	for _, f := range p.MatchFields() {
		if f == "" {
			continue
		}
		if !f.Valid() {
			problems = append(problems, fmt.Sprintf("unknown field %q", f))
			continue
		}
		if seen[f] {
			problems = append(problems, fmt.Sprintf("field %q listed more than once", f))
			continue
		}
		seen[f] = true
		if mappings != nil && !mappings.Produces(f) {
			problems = append(problems, fmt.Sprintf("field %q is not produced by any dataset mapping", f))
		}
	}

	for _, f := range p.Expected {
		if !f.Valid() {
			problems = append(problems, fmt.Sprintf("unknown expected field %q", f))
		} else if mappings != nil && !mappings.Produces(f) {
			problems = append(problems, fmt.Sprintf("expected field %q is not produced by any dataset mapping", f))
		}
	}

	if len(problems) > 0 {
		return &PolicyConfigError{Mode: p.Mode, Problems: problems}
	}
	return nil
}

// Required returns the fields that must resolve in a dataset of role before filtering.
// Reference datasets in field_or mode have no individually mandatory field; see CheckResolved.
func (p Policy) Required(role schema.Role) []schema.Field {
	var required []schema.Field
	switch role {
	case schema.RoleDistribution:
		required = p.MatchFields()
	case schema.RoleReference:
		switch p.Mode {
		case ModeFullRow:
			required = append(required, p.Fields...)
		case ModeNameGated:
			required = append(required, p.Gate)
		}
	default:
		return nil
	}
	return union(required, p.Expected)
}

func union(a, b []schema.Field) []schema.Field {
	seen := make(map[schema.Field]bool, len(a)+len(b))
	var out []schema.Field
	for _, f := range append(append([]schema.Field(nil), a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// CheckResolved fails a reference dataset that carries none of the policy's fields.
func (p Policy) CheckResolved(ds *schema.Dataset) error {
	fields := p.MatchFields()
	for _, f := range fields {
		if ds.Has(f) {
			return nil
		}
	}
	return &schema.SchemaError{Dataset: ds.Name, Role: ds.Role, Missing: fields, Columns: ds.Columns}
}

func (p Policy) String() string {
	names := func(fields []schema.Field) string {
		s := make([]string, len(fields))
		for i, f := range fields {
			s[i] = string(f)
		}
		return strings.Join(s, ",")
	}
	if p.Mode == ModeNameGated {
		return fmt.Sprintf("%s(gate=%s; secondary=%s)", p.Mode, p.Gate, names(p.Secondary))
	}
	return fmt.Sprintf("%s(%s)", p.Mode, names(p.Fields))
}

// PolicyConfigError reports an unusable matching policy. It is raised before any filtering.
type PolicyConfigError struct {
	Mode     Mode
	Problems []string
}

func (e *PolicyConfigError) Error() string {
	return fmt.Sprintf("invalid matching policy %q: %s", e.Mode, strings.Join(e.Problems, "; "))
}
