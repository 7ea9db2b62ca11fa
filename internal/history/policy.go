package history

// Policy carries the field deny-lists and the closed set of auditable entity
// types. Both lists are deployment data, injected at construction: the engine
// takes no position on why a given field is excluded, it only enforces the
// exclusion everywhere.
type Policy struct {
	// NonAuditableFields never enter a diff: system bookkeeping fields whose
	// churn is a side effect of unrelated operations.
	NonAuditableFields []string

	// OwnerRestrictedFields are dropped from diffs before they reach
	// non-admin viewers. Dropped, not masked: the field name itself is
	// considered sensitive.
	OwnerRestrictedFields []string

	// EntityTypes is the closed set of record families this deployment
	// audits.
	EntityTypes []EntityType
}

// DefaultPolicy returns the membership platform's stock policy.
func DefaultPolicy() Policy {
	return Policy{
		NonAuditableFields: []string{
			"created_at",
			"updated_at",
			"last_login_at",
			"login_count",
			"team_id",
			"search_vector",
		},
		OwnerRestrictedFields: []string{
			"role",
			"verified",
			"verification_status",
			"internal_id",
			"created_at",
			"updated_at",
		},
		EntityTypes: []EntityType{
			EntityProfile,
			EntityCoachProfile,
			EntityJudgeProfile,
		},
	}
}

// KnownEntityType reports whether et belongs to the policy's closed set.
func (p Policy) KnownEntityType(et EntityType) bool {
	for _, known := range p.EntityTypes {
		if known == et {
			return true
		}
	}
	return false
}

// OwnerRestricted reports whether the field must be hidden from non-admin
// viewers entirely.
func (p Policy) OwnerRestricted(field string) bool {
	for _, f := range p.OwnerRestrictedFields {
		if f == field {
			return true
		}
	}
	return false
}
