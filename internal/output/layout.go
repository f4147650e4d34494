// Package output projects scrubbed contacts into the CRM import layout.
package output

import (
	"fmt"
	"strings"

	"github.com/contact-scrub/internal/schema"
)

// DefaultFileName is the name the CRM import job picks the PN file up by.
const DefaultFileName = "contactos_reparto_final_PN.xlsx"

// Column is one destination column. At most one of Field, Source and Value is set;
// a column with none of them is always empty.
type Column struct {
	Name   string       `yaml:"name" json:"name" validate:"required"`
	Field  schema.Field `yaml:"field,omitempty" json:"field,omitempty"`   // logical field copied raw
	Source string       `yaml:"source,omitempty" json:"source,omitempty"` // passthrough column by name
	Value  string       `yaml:"value,omitempty" json:"value,omitempty"`   // constant, may use {{ .RunDate }}
}

// Layout is the ordered destination schema.
type Layout []Column

// Header returns the destination column names in order.
func (l Layout) Header() []string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.Name
	}
	return names
}

// Validate checks names are unique and each column has a single source.
func (l Layout) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("output layout has no columns")
	}
	var problems []string
	seen := make(map[string]bool, len(l))
	for i, c := range l {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("column %d has no name", i+1))
			continue
		}
		if seen[strings.ToLower(name)] {
			problems = append(problems, fmt.Sprintf("column %q appears more than once", name))
		}
		seen[strings.ToLower(name)] = true

		sources := 0
		for _, set := range []bool{c.Field != "", c.Source != "", c.Value != ""} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			problems = append(problems, fmt.Sprintf("column %q sets more than one of field, source and value", name))
		}
		if c.Field != "" && !c.Field.Valid() {
			problems = append(problems, fmt.Sprintf("column %q maps unknown field %q", name, c.Field))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid output layout: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DefaultLayout is the PN import format.
func DefaultLayout() Layout {
	return Layout{
		{Name: "ID Integrador", Field: schema.RecordID},
		{Name: "Fecha Captación"},
		{Name: "Nombre de pila", Field: schema.PersonName},
		{Name: "Primer Apellido"},
		{Name: "Correo electrónico"},
		{Name: "Teléfono móvil", Field: schema.PhonePrimary},
		{Name: "Origen Del Dato"},
		{Name: "Guia/Webinar/Curso Descargado"},
		{Name: "Ciudad"},
		{Name: "Tipo De Registro", Value: "Novel"},
		{Name: "Subtipo De Registro"},
		{Name: "Marca", Value: "EAE"},
		{Name: "Sub canal", Value: "Empresas"},
		{Name: "Código Postal"},
		{Name: "Link Linkedin", Field: schema.ProfileLink},
		{Name: "Nivel De Estudios", Field: schema.Qualification},
		{Name: "Base De Datos", Value: `Novel_{{ .RunDate.Format "2006-01-02" }}`},
		{Name: "Zona comercial"},
	}
}
