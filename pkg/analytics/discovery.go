package analytics

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
)

// sampleRows is the bounded sample size used to enumerate live columns.
const sampleRows = 5

// SchemaSnapshot is the discovered schema for one data version: the
// actually-present column set plus a small sample. Immutable once published;
// concurrent turns share snapshots without synchronization.
type SchemaSnapshot struct {
	Version string
	Columns []string
	Sample  *dataset.Frame

	colSet map[string]bool
}

// Has reports whether a column exists in this snapshot.
func (s *SchemaSnapshot) Has(column string) bool { return s.colSet[column] }

// ColumnSet returns the snapshot's columns as a set.
func (s *SchemaSnapshot) ColumnSet() map[string]bool { return s.colSet }

// Discovery caches schema snapshots per data version. Lookups for the same
// version are collapsed to a single sample fetch.
type Discovery struct {
	data  *dataset.Manager
	cache *gocache.Cache
	group singleflight.Group
}

// NewDiscovery creates a Discovery over the dataset manager.
func NewDiscovery(data *dataset.Manager) *Discovery {
	return &Discovery{
		data: data,
		// Snapshots are invalidated by version change, not time;
		// the TTL is a backstop against unbounded growth.
		cache: gocache.New(24*time.Hour, time.Hour),
	}
}

// Snapshot returns the schema snapshot for the current data version,
// fetching and caching it when absent.
func (d *Discovery) Snapshot(ctx context.Context) (*SchemaSnapshot, error) {
	_, version, err := d.data.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data version: %w", err)
	}

	if cached, ok := d.cache.Get(version); ok {
		return cached.(*SchemaSnapshot), nil
	}

	result, err, _ := d.group.Do(version, func() (any, error) {
		if cached, ok := d.cache.Get(version); ok {
			return cached, nil
		}
		snap, err := d.fetch(ctx, version)
		if err != nil {
			return nil, err
		}
		d.cache.Set(version, snap, gocache.DefaultExpiration)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*SchemaSnapshot), nil
}

func (d *Discovery) fetch(ctx context.Context, version string) (*SchemaSnapshot, error) {
	sample, sampleVersion, err := d.data.Sample(ctx, sampleRows)
	if err != nil {
		return nil, fmt.Errorf("schema discovery sample failed: %w", err)
	}
	if sampleVersion != version {
		// Version rolled over between Refresh and Sample; use what the
		// sample actually came from.
		version = sampleVersion
	}

	snap := &SchemaSnapshot{
		Version: version,
		Columns: sample.Columns,
		Sample:  sample,
		colSet:  make(map[string]bool, len(sample.Columns)),
	}
	for _, c := range sample.Columns {
		snap.colSet[c] = true
	}
	return snap, nil
}
