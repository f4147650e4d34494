package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping lists, per logical field, the source column names that may carry it.
// The first alias present in a table wins.
type Mapping map[Field][]string

// Mappings holds one Mapping per dataset role.
type Mappings map[Role]Mapping

// Produces reports whether any role maps the field.
func (m Mappings) Produces(f Field) bool {
	for _, mapping := range m {
		if len(mapping[f]) > 0 {
			return true
		}
	}
	return false
}

// Fields returns the fields a mapping declares, in Fields() order.
func (m Mapping) Fields() []Field {
	var out []Field
	for _, f := range Fields() {
		if len(m[f]) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// DefaultMappings returns the column aliases used by the CRM exports this tool consumes.
func DefaultMappings() Mappings {
	reference := Mapping{
		Company:            {"company", "empresa"},
		PersonName:         {"person_name", "name", "nombre"},
		JobTitle:           {"job_title", "title", "cargo", "puesto"},
		ProfileLink:        {"link", "linkedin", "enlace linkedin", "profile_link"},
		PhonePrimary:       {"phone", "telefono", "teléfono", "numero"},
		PhoneSecondaryList: {"otros teléfonos", "otros telefonos", "phones"},
		RecordID:           {"numero dato", "id integrador", "record_id", "id"},
		Qualification:      {"titulacion", "titulación", "qualification"},
	}

	return Mappings{
		RoleDistribution: {
			Company:            {"empresa", "company", "compañía"},
			PersonName:         {"nombre", "nombre completo", "person_name", "name"},
			JobTitle:           {"cargo", "puesto", "job_title", "title"},
			ProfileLink:        {"enlace linkedin", "linkedin", "link linkedin", "link", "profile_link"},
			PhonePrimary:       {"numero", "teléfono", "telefono", "teléfono móvil", "phone"},
			PhoneSecondaryList: {"otros teléfonos", "otros telefonos", "phones"},
			RecordID:           {"numero dato", "id integrador", "record_id", "id"},
			Qualification:      {"titulacion", "titulación", "nivel de estudios", "qualification"},
		},
		RoleReference: reference,
		RoleSales:     reference,
	}
}

// foldColumn is the comparison form of a column header.
func foldColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve maps each logical field in mapping to the index of the header column carrying it.
func Resolve(header []string, mapping Mapping) map[Field]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		key := foldColumn(col)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	resolved := make(map[Field]int)
	for field, aliases := range mapping {
		for _, alias := range aliases {
			if i, ok := index[foldColumn(alias)]; ok {
				resolved[field] = i
				break
			}
		}
	}
	return resolved
}

// Adapt resolves the logical fields of table for role. Every field in required must be
// found; otherwise a *SchemaError naming all missing fields is returned. Rows shorter than
// the header are padded with empty cells; the table itself is not modified.
func Adapt(table Table, role Role, mapping Mapping, required []Field) (*Dataset, error) {
	fields := Resolve(table.Header, mapping)

	var missing []Field
	for _, f := range required {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &SchemaError{
			Dataset: table.Name,
			Role:    role,
			Missing: missing,
			Columns: append([]string(nil), table.Header...),
		}
	}

	columns := make(map[string]int, len(table.Header))
	for i, col := range table.Header {
		key := foldColumn(col)
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}

	width := len(table.Header)
	records := make([]Record, 0, len(table.Rows))
	for i, row := range table.Rows {
		values := row
		if len(row) != width {
			values = make([]string, width)
			copy(values, row)
		}
		records = append(records, Record{Line: i + 1, Values: values})
	}

	return &Dataset{
		Name:    table.Name,
		Role:    role,
		Columns: table.Header,
		Records: records,
		fields:  fields,
		columns: columns,
	}, nil
}

// SchemaError reports mandatory logical fields that could not be located in a dataset.
type SchemaError struct {
	Dataset string
	Role    Role
	Missing []Field
	Columns []string
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("dataset %q (%s) is missing mandatory fields [%s]; columns found: [%s]",
		e.Dataset, e.Role, strings.Join(names, ", "), strings.Join(e.Columns, ", "))
}
