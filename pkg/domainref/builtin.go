package domainref

import "sync"

var (
	builtinRef  *Reference
	builtinOnce sync.Once
)

// Builtin returns the built-in domain reference used when no external
// document is configured. Thread-safe, lazily initialized, immutable once
// published.
func Builtin() *Reference {
	builtinOnce.Do(func() {
		builtinRef = &Reference{
			Version: "2025-07",
			Columns: map[string]ColumnMeta{
				"consignee_codes":     {Type: "list", Description: "Account codes authorized to see this shipment", Internal: true},
				"container_number":    {Type: "string", Description: "Container identifier (four letters + seven digits)"},
				"po_numbers":          {Type: "string", Description: "Purchase order numbers on the shipment"},
				"shipment_status":     {Type: "string", Description: "Lifecycle status, e.g. DELIVERED, IN_OCEAN"},
				"final_carrier_name":  {Type: "string", Description: "Ocean carrier operating the final leg"},
				"discharge_port":      {Type: "string", Description: "Port of discharge (DP)"},
				"final_destination":   {Type: "string", Description: "Final destination (FD) location"},
				"eta_dp_date":         {Type: "date", Description: "Carrier-published ETA at discharge port"},
				"best_eta_dp_date":    {Type: "date", Description: "Best-available ETA at discharge port"},
				"ata_dp_date":         {Type: "date", Description: "Actual arrival at discharge port"},
				"derived_ata_dp_date": {Type: "date", Description: "Derived actual DP arrival when not reported"},
				"eta_fd_date":         {Type: "date", Description: "Carrier-published ETA at final destination"},
				"best_eta_fd_date":    {Type: "date", Description: "Best-available ETA at final destination"},
				"dp_delayed_dur":      {Type: "number", Description: "Delay at discharge port in days (positive = delayed)"},
				"cargo_weight_kg":     {Type: "number", Description: "Cargo weight in kilograms"},
				"teus":                {Type: "number", Description: "Twenty-foot equivalent units"},
				"row_version":         {Type: "string", Description: "Ingestion row version", Internal: true},
				"source_batch_id":     {Type: "string", Description: "Ingestion batch identifier", Internal: true},
			},
			DateRoles: map[string][]string{
				"dp_eta": {"best_eta_dp_date", "eta_dp_date"},
				"dp_ata": {"ata_dp_date", "derived_ata_dp_date"},
				"fd_eta": {"best_eta_fd_date", "eta_fd_date"},
			},
			DelayColumn:     "dp_delayed_dur",
			DefaultDateRole: "dp_eta",
		}
	})
	return builtinRef
}
