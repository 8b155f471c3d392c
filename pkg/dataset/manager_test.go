package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), Config{
		CacheDir: t.TempDir(),
		TestMode: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestRefresh_WritesTodaysFixture(t *testing.T) {
	m := testManager(t)

	path, version, err := m.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "master_"+time.Now().Format("2006-01-02"), version)
	assert.FileExists(t, path)
	assert.Equal(t, version+".parquet", filepath.Base(path))
}

func TestRefresh_IsIdempotent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	path, _, err := m.Refresh(ctx)
	require.NoError(t, err)
	first, err := os.Stat(path)
	require.NoError(t, err)

	_, _, err = m.Refresh(ctx)
	require.NoError(t, err)
	second, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, first.ModTime(), second.ModTime())
}

func TestRefresh_RemovesStaleVersions(t *testing.T) {
	m := testManager(t)

	stale := filepath.Join(m.cfg.CacheDir, "master_2020-01-01.parquet")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	unrelated := filepath.Join(m.cfg.CacheDir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

	_, _, err := m.Refresh(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, unrelated)
}

func TestRefresh_NoBucketOutsideTestMode(t *testing.T) {
	m, err := NewManager(context.Background(), Config{CacheDir: t.TempDir()})
	require.NoError(t, err)
	defer m.Close()

	_, _, err = m.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage bucket configured")
}

func TestFixtureRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	require.NoError(t, WriteFixture(path, TestModeRows()))

	frame, err := ReadFrame(path, nil, 0)
	require.NoError(t, err)

	require.Len(t, frame.Rows, 2)
	assert.Contains(t, frame.Columns, "consignee_codes")
	assert.Contains(t, frame.Columns, "container_number")
	assert.Contains(t, frame.Columns, "dp_delayed_dur")

	first := frame.Rows[0]
	assert.Equal(t, "MSCU1234567", first["container_number"])
	assert.Equal(t, []string{"TEST"}, first["consignee_codes"])
	assert.Equal(t, float64(1), first["dp_delayed_dur"])
	assert.Equal(t, "2025-07-02", first["best_eta_dp_date"])
}

func TestReadFrame_LimitAndProjection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	require.NoError(t, WriteFixture(path, TestModeRows()))

	frame, err := ReadFrame(path, []string{"container_number", "teus"}, 1)
	require.NoError(t, err)

	require.Len(t, frame.Rows, 1)
	assert.ElementsMatch(t, []string{"container_number", "teus"}, frame.Columns)
	_, hasStatus := frame.Rows[0]["shipment_status"]
	assert.False(t, hasStatus)
}

func TestReadColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	require.NoError(t, WriteFixture(path, TestModeRows()))

	cols, err := ReadColumns(path)
	require.NoError(t, err)
	assert.Contains(t, cols, "consignee_codes")
	assert.Contains(t, cols, "discharge_port")
	assert.Contains(t, cols, "cargo_weight_kg")
}

func TestLoad_AlwaysCarriesScopeColumn(t *testing.T) {
	m := testManager(t)

	frame, err := m.Load(context.Background(), []string{"container_number"})
	require.NoError(t, err)

	assert.Contains(t, frame.Columns, "consignee_codes")
	for _, row := range frame.Rows {
		assert.NotNil(t, row["consignee_codes"])
	}
}

func TestSample_BoundsRows(t *testing.T) {
	m := testManager(t)

	frame, version, err := m.Sample(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, frame.Rows, 1)
	assert.NotEmpty(t, version)
}
