package domainref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_IsValid(t *testing.T) {
	ref := Builtin()

	require.NotNil(t, ref)
	assert.NoError(t, ref.validate())
	assert.Equal(t, "dp_delayed_dur", ref.DelayColumn)
	assert.Equal(t, "dp_eta", ref.DefaultDateRole)
	assert.Same(t, ref, Builtin())
}

func TestBuiltin_InternalColumns(t *testing.T) {
	ref := Builtin()

	assert.True(t, ref.IsInternal("consignee_codes"))
	assert.False(t, ref.IsInternal("container_number"))
	assert.False(t, ref.IsInternal("not_a_column"))
	assert.Equal(t, []string{"consignee_codes", "row_version", "source_batch_id"}, ref.InternalColumns())
}

func TestResolveDateRole(t *testing.T) {
	ref := Builtin()

	tests := []struct {
		name      string
		role      string
		available []string
		want      string
		wantErr   bool
	}{
		{"first candidate wins", "dp_eta", []string{"best_eta_dp_date", "eta_dp_date"}, "best_eta_dp_date", false},
		{"falls through precedence", "dp_eta", []string{"eta_dp_date"}, "eta_dp_date", false},
		{"ata precedence", "dp_ata", []string{"derived_ata_dp_date"}, "derived_ata_dp_date", false},
		{"fd role", "fd_eta", []string{"best_eta_fd_date", "eta_fd_date"}, "best_eta_fd_date", false},
		{"no candidate present", "dp_eta", []string{"container_number"}, "", true},
		{"unknown role", "warehouse_eta", []string{"best_eta_dp_date"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available := make(map[string]bool, len(tt.available))
			for _, c := range tt.available {
				available[c] = true
			}

			got, err := ref.ResolveDateRole(tt.role, available)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptSection(t *testing.T) {
	ref := Builtin()

	section := ref.PromptSection([]string{"container_number", "dp_delayed_dur", "consignee_codes"})

	assert.Contains(t, section, "`container_number`")
	assert.Contains(t, section, "\"delayed\" means `dp_delayed_dur` > 0")
	assert.Contains(t, section, "date role `dp_eta` resolves in order: best_eta_dp_date, eta_dp_date")
	// Internal columns never reach the prompt, present or not.
	assert.NotContains(t, section, "`consignee_codes`")
	// Absent columns are not advertised.
	assert.NotContains(t, section, "`discharge_port`")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.yaml")
	content := `version: "2026-01"
columns:
  container_number:
    type: string
    description: Container identifier
  hidden_col:
    type: string
    description: internal marker
    internal: true
date_roles:
  dp_eta: [best_eta_dp_date, eta_dp_date]
delay_column: dp_delayed_dur
default_date_role: dp_eta
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ref, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2026-01", ref.Version)
	assert.True(t, ref.IsInternal("hidden_col"))
	assert.True(t, ref.DateRole("dp_eta"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing version", "columns: {}\ndelay_column: d\n"},
		{"missing delay column", "version: v1\ncolumns: {}\n"},
		{"dangling default role", "version: v1\ndelay_column: d\ndefault_date_role: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reference.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
