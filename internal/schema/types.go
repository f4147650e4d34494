package schema

import (
	"fmt"
	"sort"

	"github.com/contact-scrub/internal/normalize"
)

// Field is a logical role a source column can play.
type Field string

const (
	Company            Field = "company"
	PersonName         Field = "person_name"
	JobTitle           Field = "job_title"
	ProfileLink        Field = "profile_link"
	PhonePrimary       Field = "phone_primary"
	PhoneSecondaryList Field = "phone_secondary_list"
	RecordID           Field = "record_id"
	Qualification      Field = "qualification"
)

// fieldKinds fixes the normalization rule for each logical field.
var fieldKinds = map[Field]normalize.Kind{
	Company:            normalize.KindText,
	PersonName:         normalize.KindText,
	JobTitle:           normalize.KindText,
	ProfileLink:        normalize.KindURL,
	PhonePrimary:       normalize.KindPhone,
	PhoneSecondaryList: normalize.KindPhoneList,
	RecordID:           normalize.KindID,
	Qualification:      normalize.KindText,
}

// Kind returns the normalization kind of f.
func (f Field) Kind() normalize.Kind {
	return fieldKinds[f]
}

// Valid reports whether f is a known logical field.
func (f Field) Valid() bool {
	_, ok := fieldKinds[f]
	return ok
}

// Fields lists every logical field in a stable order.
func Fields() []Field {
	return []Field{Company, PersonName, JobTitle, ProfileLink, PhonePrimary, PhoneSecondaryList, RecordID, Qualification}
}

// Role is the part a dataset plays in a run.
type Role string

const (
	RoleDistribution Role = "distribution"
	RoleReference    Role = "reference"
	RoleSales        Role = "sales"
)

// Table is raw tabular input exactly as the I/O layer produced it.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Record is one data row. Values are aligned with the owning dataset's columns.
type Record struct {
	Line   int // 1-based data row position in the source table
	Values []string
}

// Dataset is an adapted table: the raw columns plus the resolved logical fields.
type Dataset struct {
	Name    string
	Role    Role
	Columns []string
	Records []Record

	fields  map[Field]int
	columns map[string]int
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Empty reports whether d is nil or holds no records.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// Has reports whether the logical field resolved to a column.
func (d *Dataset) Has(f Field) bool {
	_, ok := d.fields[f]
	return ok
}

// Column returns the source column a logical field resolved to.
func (d *Dataset) Column(f Field) (string, bool) {
	idx, ok := d.fields[f]
	if !ok {
		return "", false
	}
	return d.Columns[idx], true
}

// ResolvedFields returns the logical fields present in d, sorted.
func (d *Dataset) ResolvedFields() []Field {
	out := make([]Field, 0, len(d.fields))
	for f := range d.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns the raw value of a logical field. The boolean is false when the field is not
// mapped in d; an empty cell is returned as "" with true.
func (d *Dataset) Get(r Record, f Field) (string, bool) {
	idx, ok := d.fields[f]
	if !ok {
		return "", false
	}
	return r.Values[idx], true
}

// Lookup returns the raw value of a source column by name (case-insensitive, trimmed).
func (d *Dataset) Lookup(r Record, column string) (string, bool) {
	idx, ok := d.columns[foldColumn(column)]
	if !ok {
		return "", false
	}
	return r.Values[idx], true
}

// Keys returns the normalized keys of a logical field for r.
func (d *Dataset) Keys(r Record, f Field) []string {
	raw, ok := d.Get(r, f)
	if !ok {
		return nil
	}
	return normalize.Keys(f.Kind(), raw)
}

// Subset returns a new dataset with the same schema holding only records.
// The receiver is left untouched.
func (d *Dataset) Subset(records []Record) *Dataset {
	return &Dataset{
		Name:    d.Name,
		Role:    d.Role,
		Columns: d.Columns,
		Records: records,
		fields:  d.fields,
		columns: d.columns,
	}
}

func (d *Dataset) String() string {
	return fmt.Sprintf("%s[%s] (%d records)", d.Name, d.Role, d.Len())
}
