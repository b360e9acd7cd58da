package domain

import "time"

// StopReason mirrors the OCPP 1.6 StopTransaction reason codes.
const (
	StopReasonLocal        = "Local"
	StopReasonRemote       = "Remote"
	StopReasonOther        = "Other"
	StopReasonDeAuthorized = "DeAuthorized"
	StopReasonPowerLoss    = "PowerLoss"
)

// Transaction is one charging session on a connector. The id is allocated by
// the database when the row is inserted and echoed back to the station in the
// StartTransaction response; stations quote it in MeterValues and
// StopTransaction.
type Transaction struct {
	ID            int        `json:"id" gorm:"primaryKey;autoIncrement"`
	StationID     string     `json:"station_id" gorm:"index:idx_tx_station"`
	ConnectorID   int        `json:"connector_id" gorm:"index:idx_tx_station"`
	IdTag         string     `json:"id_tag"`
	StartValue    int64      `json:"start_value"`
	StopValue     *int64     `json:"stop_value,omitempty"`
	TotalEnergy   int64      `json:"total_energy"`
	StartTime     time.Time  `json:"start_time"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	ReservationID *int       `json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsOpen reports whether the transaction has not been stopped yet.
func (t *Transaction) IsOpen() bool {
	return t.StopTime == nil
}

// Finalize closes the transaction with the given stop reading. Energy is the
// register delta; a stop reading below the start reading is treated as a
// meter glitch and clamped so the total never goes negative. Returns true
// when clamping was applied.
func (t *Transaction) Finalize(stopValue int64, at time.Time, reason string) bool {
	clamped := false
	if stopValue < t.StartValue {
		stopValue = t.StartValue
		clamped = true
	}
	t.StopValue = &stopValue
	t.TotalEnergy = stopValue - t.StartValue
	stop := at.UTC()
	t.StopTime = &stop
	t.Reason = reason
	return clamped
}

// StartRequest carries a validated StartTransaction into the service layer.
type StartRequest struct {
	StationID     string
	ConnectorID   int
	IdTag         string
	MeterStart    int64
	Timestamp     time.Time
	ReservationID *int
}

// StopRequest carries a validated StopTransaction into the service layer.
type StopRequest struct {
	StationID     string
	TransactionID int
	IdTag         string
	MeterStop     int64
	Timestamp     time.Time
	Reason        string
}

// MeterSample is one sampled value from a MeterValues batch, stored verbatim.
// TransactionID is nil for samples reported outside a running transaction.
type MeterSample struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	TransactionID *int      `json:"transaction_id,omitempty" gorm:"index"`
	StationID     string    `json:"station_id"`
	ConnectorID   int       `json:"connector_id"`
	Timestamp     time.Time `json:"timestamp"`
	Measurand     string    `json:"measurand"`
	Phase         string    `json:"phase,omitempty"`
	Unit          string    `json:"unit,omitempty"`
	Value         string    `json:"value"`
}

// MeterBatch groups the samples of one MeterValues message so they are
// buffered and flushed together.
type MeterBatch struct {
	StationID     string
	ConnectorID   int
	TransactionID *int
	Samples       []MeterSample
}
