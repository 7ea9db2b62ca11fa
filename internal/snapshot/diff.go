package snapshot

// FieldChange reports one field whose value differs between two snapshots.
// Old is the absent marker on creation, New on deletion.
type FieldChange struct {
	Field string
	Old   Value
	New   Value
}

// Differ computes field-level diffs. Fields on the non-auditable list never
// appear in its output; the list is policy data supplied at construction,
// not hard-coded business logic.
type Differ struct {
	nonAuditable map[string]struct{}
}

// NewDiffer builds a differ with the given non-auditable field names
// (system bookkeeping fields such as record timestamps or side-effect
// foreign keys).
func NewDiffer(nonAuditable []string) *Differ {
	deny := make(map[string]struct{}, len(nonAuditable))
	for _, f := range nonAuditable {
		deny[f] = struct{}{}
	}
	return &Differ{nonAuditable: deny}
}

// Diff returns the changed fields between old and new.
//
// A nil old snapshot (creation) reports every new field against the absent
// marker; a nil new snapshot (deletion) mirrors that. Otherwise the union of
// field names is walked in first-appearance order across old then new, and a
// field is reported when its values are unequal under the structural rule in
// Equal. Repeated calls on identical input produce identical output.
func (d *Differ) Diff(oldSnap, newSnap *FieldMap) []FieldChange {
	var changes []FieldChange

	report := func(field string, oldVal, newVal Value) {
		if _, denied := d.nonAuditable[field]; denied {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
	}

	switch {
	case oldSnap.Len() == 0 && newSnap.Len() == 0:
		return nil
	case oldSnap == nil:
		for _, f := range newSnap.Fields() {
			v, _ := newSnap.Get(f)
			report(f, Absent(), v)
		}
		return changes
	case newSnap == nil:
		for _, f := range oldSnap.Fields() {
			v, _ := oldSnap.Get(f)
			report(f, v, Absent())
		}
		return changes
	}

	seen := make(map[string]struct{}, oldSnap.Len()+newSnap.Len())
	union := make([]string, 0, oldSnap.Len()+newSnap.Len())
	for _, f := range oldSnap.Fields() {
		seen[f] = struct{}{}
		union = append(union, f)
	}
	for _, f := range newSnap.Fields() {
		if _, dup := seen[f]; !dup {
			union = append(union, f)
		}
	}

	for _, f := range union {
		oldVal, inOld := oldSnap.Get(f)
		newVal, inNew := newSnap.Get(f)
		if !inOld {
			oldVal = Absent()
		}
		if !inNew {
			newVal = Absent()
		}
		if !Equal(oldVal, newVal) {
			report(f, oldVal, newVal)
		}
	}
	return changes
}

// ChangedFields projects a diff onto the ordered field names, as stored
// denormalized on an audit entry for fast filtering.
func ChangedFields(changes []FieldChange) []string {
	if len(changes) == 0 {
		return nil
	}
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	return fields
}
