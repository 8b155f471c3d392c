// Package retrieval issues filtered hybrid (keyword+vector) queries against
// the external search index and returns ranked hits. Filters and result
// projections are restricted to an allow-listed field set; only absolute
// date literals cross this boundary, never date arithmetic.
package retrieval

import (
	"context"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// AllowedFields is the projection and filter allow list at the search
// boundary. Requests referencing anything else are rejected by construction:
// the query builder only ever emits these fields.
var AllowedFields = []string{
	"container_number",
	"po_numbers",
	"booking_number",
	"shipment_status",
	"final_carrier_name",
	"discharge_port",
	"final_destination",
	"eta_dp_date",
	"best_eta_dp_date",
	"ata_dp_date",
	"eta_fd_date",
	"best_eta_fd_date",
}

// Query is one search request. ConsigneeCodes is mandatory; the searcher
// refuses to issue unscoped queries.
type Query struct {
	Text             string
	ConsigneeCodes   []string
	ContainerNumbers []string
	PONumbers        []string
	DateRange        *models.DateRange // absolute dates only
	Limit            int
}

// Searcher is the hybrid search capability.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]models.SearchHit, error)
}
