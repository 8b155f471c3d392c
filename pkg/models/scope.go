package models

// ScopeSource identifies how a principal's permitted identity set was derived.
type ScopeSource string

const (
	ScopeSourceRegistry    ScopeSource = "registry"
	ScopeSourceDevOverride ScopeSource = "dev-override"
	ScopeSourceNone        ScopeSource = "none"
)

// Scope is the row-level-security scope of an authenticated principal:
// the consignee codes whose shipments the principal may see (self plus
// subordinate accounts). A scope that could not be resolved is denied
// with an empty permitted set, never a fallback to caller-supplied values.
type Scope struct {
	PrincipalID    string      `json:"principal_id"`
	ConsigneeCodes []string    `json:"consignee_codes"`
	Source         ScopeSource `json:"source"`
	Denied         bool        `json:"denied"`
}

// Permits reports whether the scope allows any data access at all.
func (s Scope) Permits() bool {
	return !s.Denied && len(s.ConsigneeCodes) > 0
}
