package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rostertrail/internal/history"
	"rostertrail/internal/snapshot"
)

func TestRedact_OwnerMasksEmails(t *testing.T) {
	r := New()

	cases := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.com", "ja******@example.com"},
		{"ab@club.no", "ab@club.no"},
		{"a@test.com", "a@test.com"},
	}
	for _, tc := range cases {
		got := r.Redact("email", snapshot.String(tc.in), history.PrivilegeOwner)
		assert.Equal(t, snapshot.String(tc.want), got, "input %q", tc.in)
	}
}

func TestRedact_OwnerMasksLongNumericStrings(t *testing.T) {
	r := New()

	got := r.Redact("phone", snapshot.String("4799887766554"), history.PrivilegeOwner)
	assert.Equal(t, snapshot.String("479*******554"), got)

	// Ten characters or fewer pass through.
	short := r.Redact("phone", snapshot.String("4799887766"), history.PrivilegeOwner)
	assert.Equal(t, snapshot.String("4799887766"), short)

	// Mixed content is not treated as numeric.
	mixed := r.Redact("license", snapshot.String("NO-479988776655"), history.PrivilegeOwner)
	assert.Equal(t, snapshot.String("NO-479988776655"), mixed)
}

func TestRedact_AdminSeesRawValues(t *testing.T) {
	r := New()

	email := r.Redact("email", snapshot.String("jane.doe@example.com"), history.PrivilegeAdmin)
	assert.Equal(t, snapshot.String("jane.doe@example.com"), email)

	phone := r.Redact("phone", snapshot.String("4799887766554"), history.PrivilegeAdmin)
	assert.Equal(t, snapshot.String("4799887766554"), phone)
}

func TestRedact_EmptyCollectionsBecomeNoDataMarker(t *testing.T) {
	r := New()

	for _, priv := range []history.Privilege{history.PrivilegeOwner, history.PrivilegeAdmin} {
		got := r.Redact("disciplines", snapshot.List(), priv)
		assert.Equal(t, snapshot.String(NoDataMarker), got, "privilege %s", priv)

		got = r.Redact("metadata", snapshot.Map(map[string]snapshot.Value{}), priv)
		assert.Equal(t, snapshot.String(NoDataMarker), got, "privilege %s", priv)
	}

	// Non-empty collections pass through untouched.
	list := snapshot.List(snapshot.String("100m"))
	assert.Equal(t, list, r.Redact("disciplines", list, history.PrivilegeOwner))
}

func TestRedact_OtherScalarsPassThrough(t *testing.T) {
	r := New()

	for _, v := range []snapshot.Value{
		snapshot.String("Anne"),
		snapshot.Number(27),
		snapshot.Bool(true),
		snapshot.Null(),
	} {
		assert.Equal(t, v, r.Redact("whatever", v, history.PrivilegeOwner))
	}
}
