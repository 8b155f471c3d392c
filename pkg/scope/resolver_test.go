package scope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func testRegistry() *Registry {
	return NewRegistry(map[string]PrincipalEntry{
		"ACME-GLOBAL": {ConsigneeCodes: []string{"ACME"}, Children: []string{"ACME-EU", "ACME-US"}},
		"ACME-EU":     {ConsigneeCodes: []string{"ACME-EU-1", "ACME-EU-2"}},
		"ACME-US":     {ConsigneeCodes: []string{"ACME-US-1"}},
		"LONER":       {ConsigneeCodes: []string{"LONER-1"}},
		"EMPTY":       {},
	})
}

func TestResolve_SelfAndDescendants(t *testing.T) {
	r := NewResolver(testRegistry(), true, nil)

	scope := r.Resolve("ACME-GLOBAL")

	assert.False(t, scope.Denied)
	assert.Equal(t, models.ScopeSourceRegistry, scope.Source)
	assert.Equal(t, []string{"ACME", "ACME-EU-1", "ACME-EU-2", "ACME-US-1"}, scope.ConsigneeCodes)
}

func TestResolve_LeafPrincipalSeesOnlyItself(t *testing.T) {
	r := NewResolver(testRegistry(), true, nil)

	scope := r.Resolve("ACME-EU")

	assert.Equal(t, []string{"ACME-EU-1", "ACME-EU-2"}, scope.ConsigneeCodes)
}

func TestResolve_FailClosed(t *testing.T) {
	r := NewResolver(testRegistry(), true, nil)

	tests := []struct {
		name        string
		principalID string
	}{
		{"empty principal", ""},
		{"unknown principal", "NOBODY"},
		{"principal with no codes", "EMPTY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := r.Resolve(tt.principalID)
			assert.True(t, scope.Denied)
			assert.Empty(t, scope.ConsigneeCodes)
			assert.Equal(t, models.ScopeSourceNone, scope.Source)
			assert.False(t, scope.Permits())
		})
	}
}

func TestResolve_CyclicRegistryTerminates(t *testing.T) {
	registry := NewRegistry(map[string]PrincipalEntry{
		"A": {ConsigneeCodes: []string{"A1"}, Children: []string{"B"}},
		"B": {ConsigneeCodes: []string{"B1"}, Children: []string{"A"}},
	})
	r := NewResolver(registry, true, nil)

	scope := r.Resolve("A")

	assert.Equal(t, []string{"A1", "B1"}, scope.ConsigneeCodes)
}

func TestResolve_DevOverride(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		wantDenied bool
		wantSource models.ScopeSource
	}{
		{"honored outside production", false, false, models.ScopeSourceDevOverride},
		{"ignored in production", true, true, models.ScopeSourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testRegistry(), tt.production, []string{"DEV-1"})

			scope := r.Resolve("NOBODY")

			assert.Equal(t, tt.wantDenied, scope.Denied)
			assert.Equal(t, tt.wantSource, scope.Source)
		})
	}
}

func TestResolve_RegistryWinsOverOverride(t *testing.T) {
	r := NewResolver(testRegistry(), false, []string{"DEV-1"})

	scope := r.Resolve("LONER")

	assert.Equal(t, models.ScopeSourceRegistry, scope.Source)
	assert.Equal(t, []string{"LONER-1"}, scope.ConsigneeCodes)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scopes.yaml")
	content := `principals:
  ACME-GLOBAL:
    consignee_codes: [ACME]
    children: [ACME-EU]
  ACME-EU:
    consignee_codes: [ACME-EU-1]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	registry, err := LoadRegistry(path)
	require.NoError(t, err)

	r := NewResolver(registry, true, nil)
	assert.Equal(t, []string{"ACME", "ACME-EU-1"}, r.Resolve("ACME-GLOBAL").ConsigneeCodes)
}

func TestLoadRegistry_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty registry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scopes.yaml")
		require.NoError(t, os.WriteFile(path, []byte("principals: {}\n"), 0o600))
		_, err := LoadRegistry(path)
		assert.Error(t, err)
	})
}
