package dataset

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ShipmentRow is the write-side schema of the master dataset. Used by test
// mode and by fixtures; the read path discovers columns dynamically and must
// never assume this struct is complete.
type ShipmentRow struct {
	ConsigneeCodes   []string `parquet:"consignee_codes,list"`
	ContainerNumber  string   `parquet:"container_number,optional"`
	PONumbers        string   `parquet:"po_numbers,optional"`
	ShipmentStatus   string   `parquet:"shipment_status,optional"`
	FinalCarrierName string   `parquet:"final_carrier_name,optional"`
	DischargePort    string   `parquet:"discharge_port,optional"`
	FinalDestination string   `parquet:"final_destination,optional"`
	EtaDpDate        string   `parquet:"eta_dp_date,optional"`
	BestEtaDpDate    string   `parquet:"best_eta_dp_date,optional"`
	AtaDpDate        string   `parquet:"ata_dp_date,optional"`
	DerivedAtaDpDate string   `parquet:"derived_ata_dp_date,optional"`
	EtaFdDate        string   `parquet:"eta_fd_date,optional"`
	BestEtaFdDate    string   `parquet:"best_eta_fd_date,optional"`
	DpDelayedDur     float64  `parquet:"dp_delayed_dur,optional"`
	CargoWeightKg    float64  `parquet:"cargo_weight_kg,optional"`
	Teus             float64  `parquet:"teus,optional"`
}

// WriteFixture writes rows as a parquet file at path.
func WriteFixture(path string, rows []ShipmentRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fixture file: %w", err)
	}
	writer := parquet.NewGenericWriter[ShipmentRow](f)
	if _, err := writer.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write fixture rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize fixture file: %w", err)
	}
	return f.Close()
}

// TestModeRows is the synthetic dataset written when test mode is enabled.
func TestModeRows() []ShipmentRow {
	return []ShipmentRow{
		{
			ConsigneeCodes:   []string{"TEST"},
			ContainerNumber:  "MSCU1234567",
			PONumbers:        "PO-1001",
			ShipmentStatus:   "DELIVERED",
			FinalCarrierName: "MSC",
			DischargePort:    "Rotterdam",
			FinalDestination: "Berlin",
			EtaDpDate:        "2025-07-01",
			BestEtaDpDate:    "2025-07-02",
			AtaDpDate:        "2025-07-03",
			EtaFdDate:        "2025-07-08",
			BestEtaFdDate:    "2025-07-08",
			DpDelayedDur:     1,
			CargoWeightKg:    12000,
			Teus:             2,
		},
		{
			ConsigneeCodes:   []string{"OTHER"},
			ContainerNumber:  "MAEU7654321",
			PONumbers:        "PO-2002",
			ShipmentStatus:   "IN_OCEAN",
			FinalCarrierName: "Maersk",
			DischargePort:    "Hamburg",
			FinalDestination: "Prague",
			EtaDpDate:        "2025-07-10",
			BestEtaDpDate:    "2025-07-12",
			DpDelayedDur:     0,
			CargoWeightKg:    8000,
			Teus:             1,
		},
	}
}
