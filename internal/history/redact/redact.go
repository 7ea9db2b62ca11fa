// Package redact applies privilege-dependent masking to field values at
// read time. It is pure: no I/O, no policy lookups. Fields that must be
// hidden from a viewer entirely are dropped by the query service before
// values ever reach this package.
package redact

import (
	"strings"

	"rostertrail/internal/history"
	"rostertrail/internal/snapshot"
)

// NoDataMarker is returned in place of empty collections so the UI can
// distinguish "cleared" from "never set".
const NoDataMarker = "(no data)"

const maskRune = '*'

// Redactor masks field values according to viewer privilege.
type Redactor struct{}

// New returns a Redactor.
func New() *Redactor { return &Redactor{} }

// Redact returns the display value for a field.
//
// Admin viewers see raw values. Owner (and any non-admin) viewers get
// masking applied to email-shaped strings and long numeric strings. Empty
// collections render as the no-data marker for every privilege.
func (r *Redactor) Redact(field string, v snapshot.Value, priv history.Privilege) snapshot.Value {
	_ = field // masking is value-shaped; field-name policy is enforced upstream

	if v.IsEmptyCollection() {
		return snapshot.String(NoDataMarker)
	}

	if priv == history.PrivilegeAdmin {
		return v
	}

	if v.Kind != snapshot.KindString {
		return v
	}

	switch {
	case looksLikeEmail(v.Str):
		return snapshot.String(maskEmail(v.Str))
	case isLongNumeric(v.Str):
		return snapshot.String(maskNumeric(v.Str))
	default:
		return v
	}
}

// looksLikeEmail reports whether s is email-shaped: contains an @ with a
// dot somewhere after it.
func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}

// maskEmail keeps the first two characters of the local part and the full
// domain; the rest of the local part is masked.
func maskEmail(s string) string {
	at := strings.Index(s, "@")
	local, domain := s[:at], s[at:]

	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	var b strings.Builder
	b.WriteString(local[:keep])
	for i := keep; i < len(local); i++ {
		b.WriteRune(maskRune)
	}
	b.WriteString(domain)
	return b.String()
}

// isLongNumeric reports whether s is purely digits and longer than ten
// characters (phone numbers, long identifiers).
func isLongNumeric(s string) bool {
	if len(s) <= 10 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// maskNumeric keeps the first three and last three characters and masks the
// middle.
func maskNumeric(s string) string {
	var b strings.Builder
	b.WriteString(s[:3])
	for i := 3; i < len(s)-3; i++ {
		b.WriteRune(maskRune)
	}
	b.WriteString(s[len(s)-3:])
	return b.String()
}
