// Package scope derives a principal's permitted consignee-code set from the
// organizational registry. Resolution is fail-closed: any missing identity,
// missing registry mapping, or resolution error yields a denied scope with an
// empty permitted set. Caller-supplied identity claims are never used as a
// fallback.
package scope

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// PrincipalEntry is one registry record: the principal's own consignee codes
// plus the principals directly subordinate to it.
type PrincipalEntry struct {
	ConsigneeCodes []string `yaml:"consignee_codes"`
	Children       []string `yaml:"children,omitempty"`
}

// Registry maps principal ids to their entries. Immutable after load.
type Registry struct {
	principals map[string]PrincipalEntry
}

// NewRegistry builds a registry from entries (defensive copy).
func NewRegistry(principals map[string]PrincipalEntry) *Registry {
	copied := make(map[string]PrincipalEntry, len(principals))
	for k, v := range principals {
		copied[k] = v
	}
	return &Registry{principals: copied}
}

// LoadRegistry reads the principal registry from a YAML file of the form:
//
//	principals:
//	  ACME-GLOBAL:
//	    consignee_codes: [ACME]
//	    children: [ACME-EU]
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scope registry: %w", err)
	}
	var doc struct {
		Principals map[string]PrincipalEntry `yaml:"principals"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scope registry: %w", err)
	}
	if len(doc.Principals) == 0 {
		return nil, fmt.Errorf("scope registry contains no principals")
	}
	return NewRegistry(doc.Principals), nil
}

// Resolver resolves principals to scopes. A development override may be
// configured; it is honored only outside production.
type Resolver struct {
	registry    *Registry
	production  bool
	devOverride []string
}

// NewResolver creates a Resolver. registry may be nil, in which case every
// resolution is denied (fail closed) unless the dev override applies.
func NewResolver(registry *Registry, production bool, devOverride []string) *Resolver {
	return &Resolver{
		registry:    registry,
		production:  production,
		devOverride: devOverride,
	}
}

// Resolve derives the permitted identity set for a principal: its own
// consignee codes plus those of all (transitive) subordinate accounts.
func (r *Resolver) Resolve(principalID string) models.Scope {
	denied := models.Scope{
		PrincipalID:    principalID,
		ConsigneeCodes: []string{},
		Source:         models.ScopeSourceNone,
		Denied:         true,
	}

	if principalID == "" {
		slog.Warn("Scope resolution denied: empty principal")
		return denied
	}

	if r.registry != nil {
		if codes, ok := r.registry.resolve(principalID); ok && len(codes) > 0 {
			return models.Scope{
				PrincipalID:    principalID,
				ConsigneeCodes: codes,
				Source:         models.ScopeSourceRegistry,
			}
		}
	}

	// Explicit development override, gated off in production.
	if !r.production && len(r.devOverride) > 0 {
		slog.Warn("Scope resolved via dev override", "principal", principalID)
		codes := make([]string, len(r.devOverride))
		copy(codes, r.devOverride)
		return models.Scope{
			PrincipalID:    principalID,
			ConsigneeCodes: codes,
			Source:         models.ScopeSourceDevOverride,
		}
	}

	slog.Warn("Scope resolution denied: no registry mapping", "principal", principalID)
	return denied
}

// resolve walks the principal and its descendants, unioning consignee codes.
// A visited set guards against registry cycles.
func (reg *Registry) resolve(principalID string) ([]string, bool) {
	entry, ok := reg.principals[principalID]
	if !ok {
		return nil, false
	}

	seen := make(map[string]bool)
	codeSet := make(map[string]bool)
	var walk func(id string, e PrincipalEntry)
	walk = func(id string, e PrincipalEntry) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, code := range e.ConsigneeCodes {
			if code != "" {
				codeSet[code] = true
			}
		}
		for _, child := range e.Children {
			if childEntry, ok := reg.principals[child]; ok {
				walk(child, childEntry)
			}
		}
	}
	walk(principalID, entry)

	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, true
}
