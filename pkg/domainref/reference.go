// Package domainref holds the versioned domain reference: column semantics,
// date-role precedence, and delay conventions for the shipment dataset.
// It is a human-editable artifact consumed as grounding context by the
// analytics planner and answer composer, never executed as code.
package domainref

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnMeta describes one dataset column for planning purposes.
type ColumnMeta struct {
	Type        string `yaml:"type"` // string | number | date | list
	Description string `yaml:"description"`
	Internal    bool   `yaml:"internal,omitempty"`
}

// Reference is one immutable version of the domain reference document.
type Reference struct {
	Version string `yaml:"version"`

	// Columns maps physical column name to its semantics.
	Columns map[string]ColumnMeta `yaml:"columns"`

	// DateRoles maps a logical date role (e.g. "dp_eta") to its physical
	// column precedence list. The first column present in the discovered
	// schema wins; the list is the authoritative tie-break.
	DateRoles map[string][]string `yaml:"date_roles"`

	// DelayColumn is the duration column defining "delayed": a shipment is
	// delayed when this column is > 0.
	DelayColumn string `yaml:"delay_column"`

	// DefaultDateRole is used when a question mentions arrival/ETA without
	// naming a destination ("best-available discharge-port date unless
	// final destination is explicitly requested").
	DefaultDateRole string `yaml:"default_date_role"`
}

// Load reads a reference document from a YAML file.
func Load(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain reference: %w", err)
	}
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("failed to parse domain reference: %w", err)
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *Reference) validate() error {
	if r.Version == "" {
		return fmt.Errorf("domain reference: version is required")
	}
	if r.DelayColumn == "" {
		return fmt.Errorf("domain reference: delay_column is required")
	}
	if _, ok := r.DateRoles[r.DefaultDateRole]; r.DefaultDateRole != "" && !ok {
		return fmt.Errorf("domain reference: default_date_role %q has no precedence list", r.DefaultDateRole)
	}
	return nil
}

// IsInternal reports whether a column is internal-only and must never reach
// user-facing output.
func (r *Reference) IsInternal(column string) bool {
	meta, ok := r.Columns[column]
	return ok && meta.Internal
}

// InternalColumns lists all internal-only columns, sorted.
func (r *Reference) InternalColumns() []string {
	var cols []string
	for name, meta := range r.Columns {
		if meta.Internal {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols
}

// DateRole reports whether name is a known logical date role.
func (r *Reference) DateRole(name string) bool {
	_, ok := r.DateRoles[name]
	return ok
}

// ResolveDateRole maps a logical date role to the first physical column of
// its precedence list that exists in the available schema. An unknown role,
// or a role none of whose candidates are present, cannot be resolved.
func (r *Reference) ResolveDateRole(role string, available map[string]bool) (string, error) {
	candidates, ok := r.DateRoles[role]
	if !ok {
		return "", fmt.Errorf("unknown date role %q", role)
	}
	for _, col := range candidates {
		if available[col] {
			return col, nil
		}
	}
	return "", fmt.Errorf("no candidate column for date role %q present in schema (tried %v)", role, candidates)
}

// PromptSection renders the reference as compact prompt context for the
// planner: column semantics plus the date-selection conventions.
func (r *Reference) PromptSection(availableColumns []string) string {
	present := make(map[string]bool, len(availableColumns))
	for _, c := range availableColumns {
		present[c] = true
	}

	var b strings.Builder
	b.WriteString("## Column Reference\n")
	names := make([]string, 0, len(r.Columns))
	for name := range r.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		meta := r.Columns[name]
		if meta.Internal || !present[name] {
			continue
		}
		fmt.Fprintf(&b, "- `%s`: %s (type: %s)\n", name, meta.Description, meta.Type)
	}

	b.WriteString("\n## Date Conventions\n")
	roles := make([]string, 0, len(r.DateRoles))
	for role := range r.DateRoles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(&b, "- date role `%s` resolves in order: %s\n", role, strings.Join(r.DateRoles[role], ", "))
	}
	fmt.Fprintf(&b, "- \"delayed\" means `%s` > 0\n", r.DelayColumn)
	if r.DefaultDateRole != "" {
		fmt.Fprintf(&b, "- when no destination is named, use date role `%s`\n", r.DefaultDateRole)
	}
	return b.String()
}
