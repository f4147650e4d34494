package match

import (
	"strings"

	"go.uber.org/zap"

	"github.com/contact-scrub/internal/schema"
)

const (
	// absentKey stands in for an Absent field inside a full-row tuple.
	absentKey = "\x00"
	valueSep  = "\x1e"
	fieldSep  = "\x1f"
)

// Stats are the counts reported for one filtering step. Removed == Input - Output always.
type Stats struct {
	Input   int `json:"input"`
	Removed int `json:"removed"`
	Output  int `json:"output"`
}

// Removal explains why a distribution record was dropped.
type Removal struct {
	Record    schema.Record
	Reference string         // name of the first reference dataset that produced the match
	Fields    []schema.Field // fields whose keys matched
}

// Result is the outcome of filtering a distribution dataset.
type Result struct {
	Kept    *schema.Dataset
	Removed []Removal
	Stats   Stats
}

// Matcher removes blacklisted records from a distribution dataset under one Policy.
type Matcher struct {
	policy Policy
	log    *zap.Logger
}

// New validates policy against mappings and returns a Matcher for it.
func New(policy Policy, mappings schema.Mappings, log *zap.Logger) (*Matcher, error) {
	if err := policy.Validate(mappings); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{policy: policy, log: log.Named("matcher")}, nil
}

// Policy returns the policy the matcher applies.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// keyIndex maps a normalized key to the name of the first reference dataset holding it.
type keyIndex map[string]string

func (ix keyIndex) add(key, source string) {
	if _, ok := ix[key]; !ok {
		ix[key] = source
	}
}

// Filter returns the records of dist that no reference matches, in their original order.
// Neither dist nor refs are modified.
func (m *Matcher) Filter(dist *schema.Dataset, refs []*schema.Dataset) *Result {
	if dist == nil {
		return &Result{}
	}

	var active []*schema.Dataset
	for _, ref := range refs {
		if !ref.Empty() {
			active = append(active, ref)
		}
	}

	if len(active) == 0 || dist.Empty() {
		n := dist.Len()
		m.log.Debug("no reference records, identity pass", zap.Int("records", n))
		return &Result{Kept: dist.Subset(append([]schema.Record(nil), dist.Records...)), Stats: Stats{Input: n, Output: n}}
	}

	var decide func(schema.Record) (Removal, bool)
	switch m.policy.Mode {
	case ModeFullRow:
		decide = m.fullRow(dist, active)
	case ModeFieldOr:
		decide = m.fieldOr(dist, active)
	case ModeNameGated:
		decide = m.nameGated(dist, active)
	}

	kept := make([]schema.Record, 0, len(dist.Records))
	var removed []Removal
	for _, rec := range dist.Records {
		if removal, hit := decide(rec); hit {
			removed = append(removed, removal)
			continue
		}
		kept = append(kept, rec)
	}

	result := &Result{
		Kept:    dist.Subset(kept),
		Removed: removed,
		Stats:   Stats{Input: len(dist.Records), Removed: len(removed), Output: len(kept)},
	}
	m.log.Info("blacklist filter applied",
		zap.String("policy", m.policy.String()),
		zap.Int("references", len(active)),
		zap.Int("input", result.Stats.Input),
		zap.Int("removed", result.Stats.Removed),
		zap.Int("output", result.Stats.Output),
	)
	return result
}

// rowKey builds the positional tuple of a record. Absent fields take part as absentKey,
// so two records that are both blank in a column are equal on that column.
func rowKey(ds *schema.Dataset, rec schema.Record, fields []schema.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		keys := ds.Keys(rec, f)
		if len(keys) == 0 {
			parts[i] = absentKey
			continue
		}
		parts[i] = strings.Join(keys, valueSep)
	}
	return strings.Join(parts, fieldSep)
}

func (m *Matcher) fullRow(dist *schema.Dataset, refs []*schema.Dataset) func(schema.Record) (Removal, bool) {
	fields := m.policy.Fields
	tuples := make(keyIndex)
	for _, ref := range refs {
		for _, rec := range ref.Records {
			tuples.add(rowKey(ref, rec, fields), ref.Name)
		}
	}
	m.log.Debug("full-row index built", zap.Int("tuples", len(tuples)))

	return func(rec schema.Record) (Removal, bool) {
		source, ok := tuples[rowKey(dist, rec, fields)]
		if !ok {
			return Removal{}, false
		}
		return Removal{Record: rec, Reference: source, Fields: append([]schema.Field(nil), fields...)}, true
	}
}

// fieldIndexes builds one key set per field across all references. A reference without the
// field contributes nothing; Absent values are never indexed.
func (m *Matcher) fieldIndexes(refs []*schema.Dataset, fields []schema.Field) map[schema.Field]keyIndex {
	indexes := make(map[schema.Field]keyIndex, len(fields))
	for _, f := range fields {
		ix := make(keyIndex)
		for _, ref := range refs {
			if !ref.Has(f) {
				m.log.Debug("reference lacks field", zap.String("reference", ref.Name), zap.String("field", string(f)))
				continue
			}
			for _, rec := range ref.Records {
				for _, key := range ref.Keys(rec, f) {
					ix.add(key, ref.Name)
				}
			}
		}
		indexes[f] = ix
		m.log.Debug("field index built", zap.String("field", string(f)), zap.Int("keys", len(ix)))
	}
	return indexes
}

// probe returns the fields of rec found in indexes and the reference of the first hit.
func probe(dist *schema.Dataset, rec schema.Record, fields []schema.Field, indexes map[schema.Field]keyIndex) ([]schema.Field, string) {
	var hits []schema.Field
	var source string
	for _, f := range fields {
		for _, key := range dist.Keys(rec, f) {
			if ref, ok := indexes[f][key]; ok {
				if source == "" {
					source = ref
				}
				hits = append(hits, f)
				break
			}
		}
	}
	return hits, source
}

func (m *Matcher) fieldOr(dist *schema.Dataset, refs []*schema.Dataset) func(schema.Record) (Removal, bool) {
	fields := m.policy.Fields
	indexes := m.fieldIndexes(refs, fields)

	return func(rec schema.Record) (Removal, bool) {
		hits, source := probe(dist, rec, fields, indexes)
		if len(hits) == 0 {
			return Removal{}, false
		}
		return Removal{Record: rec, Reference: source, Fields: hits}, true
	}
}

func (m *Matcher) nameGated(dist *schema.Dataset, refs []*schema.Dataset) func(schema.Record) (Removal, bool) {
	gate := []schema.Field{m.policy.Gate}
	gateIndex := m.fieldIndexes(refs, gate)
	indexes := m.fieldIndexes(refs, m.policy.Secondary)

	return func(rec schema.Record) (Removal, bool) {
		// Records whose name matches no reference are kept unconditionally.
		if hits, _ := probe(dist, rec, gate, gateIndex); len(hits) == 0 {
			return Removal{}, false
		}
		hits, source := probe(dist, rec, m.policy.Secondary, indexes)
		if len(hits) == 0 {
			return Removal{}, false
		}
		return Removal{Record: rec, Reference: source, Fields: append(gate, hits...)}, true
	}
}
